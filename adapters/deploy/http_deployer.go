package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
	"stratforge/internal"
	"stratforge/ports"
)

// HTTPDeployer submits a finalized strategy to the deployment platform
// over HTTP. A 4xx response is a platform rejection and is surfaced as a
// RejectionError; 5xx and transport failures are ordinary errors.
type HTTPDeployer struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *internal.Logger
}

// NewHTTPDeployer creates a deployer targeting the given platform endpoint
func NewHTTPDeployer(endpoint, apiKey string, logger *internal.Logger) *HTTPDeployer {
	return &HTTPDeployer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// deployResponse is the platform's acknowledgment payload
type deployResponse struct {
	PlatformID string `json:"platform_id"`
	URL        string `json:"url"`
	Error      string `json:"error"`
}

// Deploy submits the artifact and returns the platform identity
func (d *HTTPDeployer) Deploy(ctx context.Context, artifact *strategy.Artifact) (*ports.DeploymentResult, error) {
	body, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact for deployment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.endpoint+"/strategies", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	d.logger.Info("[Deployer] Submitting strategy %s (%s)", artifact.ID, artifact.Name)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deployment request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		detail := rejectionDetail(respBody, resp.StatusCode)
		d.logger.Warn("[Deployer] Platform rejected strategy %s: %s", artifact.ID, detail)
		return nil, &ports.RejectionError{Detail: detail}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("deployment failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var ack deployResponse
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return nil, fmt.Errorf("failed to decode deployment response: %w", err)
	}
	if ack.PlatformID == "" {
		return nil, fmt.Errorf("deployment response missing platform_id")
	}

	d.logger.Info("[Deployer] Strategy %s deployed as %s", artifact.ID, ack.PlatformID)
	return &ports.DeploymentResult{
		PlatformID: ack.PlatformID,
		URL:        ack.URL,
		DeployedAt: core.Now(),
	}, nil
}

// rejectionDetail prefers the platform's error message over the raw body
func rejectionDetail(body []byte, status int) string {
	var ack deployResponse
	if err := json.Unmarshal(body, &ack); err == nil && ack.Error != "" {
		return ack.Error
	}
	return fmt.Sprintf("status %d: %s", status, string(body))
}
