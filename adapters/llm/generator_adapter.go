package llm

import (
	"context"
	"fmt"
	"strings"

	"stratforge/ai"
	"stratforge/domain/core"
	"stratforge/domain/strategy"
	"stratforge/domain/tree"
	"stratforge/internal"
	"stratforge/ports"
)

// GeneratorAdapter implements GeneratorPort against the OpenAI chat API
// through the structured client.
type GeneratorAdapter struct {
	client *ai.StructuredClient[candidatePayload]
	model  string
	logger *internal.Logger
}

// NewGeneratorAdapter creates an LLM-backed generator
func NewGeneratorAdapter(cfg ai.ClientConfig) *GeneratorAdapter {
	return &GeneratorAdapter{
		client: ai.NewStructuredClient[candidatePayload](cfg),
		model:  cfg.Model,
		logger: internal.DefaultLogger,
	}
}

// candidatePayload is the wire shape the model responds with
type candidatePayload struct {
	Name        string             `json:"name"`
	Thesis      string             `json:"thesis"`
	Expectation string             `json:"expectation"`
	Archetype   string             `json:"archetype"`
	Assets      []string           `json:"assets"`
	Weights     map[string]float64 `json:"weights"`
	Rebalance   string             `json:"rebalance"`
	Tree        tree.Tree          `json:"tree"`
}

// Generate produces one strategy candidate
func (g *GeneratorAdapter) Generate(ctx context.Context, req ports.StageContext) (*ports.GenerationResult, error) {
	prompt := ai.BuildGenerationPrompt(req)

	payload, raw, err := g.client.GetJSONResponse(ctx, ai.SystemContext, prompt)
	if err != nil {
		return nil, err
	}

	artifact, err := payload.toArtifact()
	if err != nil {
		return nil, fmt.Errorf("generated candidate is malformed: %w", err)
	}

	return &ports.GenerationResult{
		Artifact: artifact,
		Audit: ports.GenerationAudit{
			GeneratorType: "llm",
			Model:         g.model,
			PromptHash:    core.NewHash([]byte(prompt)),
			ResponseHash:  core.NewHash([]byte(raw)),
		},
	}, nil
}

// Regenerate revises narrative fields against the blocking findings. The
// full payload is parsed as-is; the retry controller - not this adapter -
// enforces the structural postcondition, so drift is detected rather than
// silently papered over.
func (g *GeneratorAdapter) Regenerate(ctx context.Context, req ports.RegenerationRequest) (*ports.GenerationResult, error) {
	prompt := ai.BuildRegenerationPrompt(req)

	payload, raw, err := g.client.GetJSONResponse(ctx, ai.SystemContext, prompt)
	if err != nil {
		return nil, err
	}

	artifact, err := payload.toArtifact()
	if err != nil {
		return nil, fmt.Errorf("regenerated candidate is malformed: %w", err)
	}

	return &ports.GenerationResult{
		Artifact: artifact,
		Audit: ports.GenerationAudit{
			GeneratorType: "llm",
			Model:         g.model,
			PromptHash:    core.NewHash([]byte(prompt)),
			ResponseHash:  core.NewHash([]byte(raw)),
		},
	}, nil
}

// toArtifact converts the wire payload into a domain artifact
func (p *candidatePayload) toArtifact() (*strategy.Artifact, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("candidate has no name")
	}
	if len(p.Assets) == 0 {
		return nil, fmt.Errorf("candidate %q declares no assets", p.Name)
	}

	rebalance, err := strategy.ParseRebalanceFrequency(p.Rebalance)
	if err != nil {
		return nil, fmt.Errorf("candidate %q: %w", p.Name, err)
	}

	assets := make([]string, 0, len(p.Assets))
	for _, a := range p.Assets {
		assets = append(assets, strings.ToUpper(strings.TrimSpace(a)))
	}

	return &strategy.Artifact{
		ID:          core.ArtifactID(core.NewID()),
		Name:        p.Name,
		Thesis:      p.Thesis,
		Expectation: p.Expectation,
		Archetype:   strategy.Archetype(p.Archetype),
		Assets:      assets,
		Weights:     p.Weights,
		Rebalance:   rebalance,
		Tree:        p.Tree,
		CreatedAt:   core.Now(),
	}, nil
}
