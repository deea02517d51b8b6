package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stratforge/internal"
)

// ClientConfig holds the OpenAI connection settings
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// StructuredClient provides typed JSON responses from LLM calls
type StructuredClient[T any] struct {
	config ClientConfig
	http   *http.Client
	logger *internal.Logger
}

// ResponseFormat forces structured output from the chat completions API
type ResponseFormat struct {
	Type string `json:"type"` // "json_object" for structured output
}

// NewStructuredClient creates a new structured client
func NewStructuredClient[T any](config ClientConfig) *StructuredClient[T] {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 180 * time.Second
	}
	return &StructuredClient[T]{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: internal.DefaultLogger,
	}
}

// GetJSONResponse makes a typed LLM call and parses the JSON response
func (client *StructuredClient[T]) GetJSONResponse(ctx context.Context, systemMessage, prompt string) (*T, string, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type requestBody struct {
		Model               string         `json:"model"`
		Messages            []message      `json:"messages"`
		Temperature         float64        `json:"temperature,omitempty"`
		MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
		ResponseFormat      ResponseFormat `json:"response_format,omitempty"`
	}

	// The JSON response format requires "JSON" to appear in the prompt
	if !strings.Contains(strings.ToLower(systemMessage), "json") {
		systemMessage += "\n\nIMPORTANT: Respond with valid JSON output."
	}

	reqBody := requestBody{
		Model: client.config.Model,
		Messages: []message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature:         client.config.Temperature,
		MaxCompletionTokens: client.config.MaxTokens,
		ResponseFormat:      ResponseFormat{Type: "json_object"},
	}

	client.logger.Debug("[StructuredClient] Sending request to %s - promptLength=%d, temp=%.2f",
		client.config.Model, len(prompt), client.config.Temperature)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", client.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.config.APIKey)

	resp, err := client.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(body))
	}

	type openAIResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	var envelope openAIResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	if len(envelope.Choices) == 0 {
		return nil, "", fmt.Errorf("no choices in OpenAI response")
	}

	content := cleanJSONContent(envelope.Choices[0].Message.Content)

	var result T
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		client.logger.Error("[StructuredClient] Failed to unmarshal JSON content: %v", err)
		return nil, "", fmt.Errorf("failed to parse JSON content into result type: %w\nCleaned content: %s", err, content)
	}

	return &result, content, nil
}

// cleanJSONContent strips markdown code fences and leading chatter that
// some models wrap around the JSON payload
func cleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	// Drop prefix chatter before the first JSON object or array
	if !strings.HasPrefix(content, "{") && !strings.HasPrefix(content, "[") {
		if idx := strings.IndexAny(content, "{["); idx > 0 {
			content = content[idx:]
		}
	}

	return strings.TrimSpace(content)
}
