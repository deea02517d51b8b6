package ports

import (
	"context"

	"stratforge/domain/core"
	"stratforge/domain/run"
	"stratforge/domain/strategy"
)

// GeneratorPort is the external generation service. It is a black box:
// the engine only requires conformance to the Artifact shape.
type GeneratorPort interface {
	// Generate produces one strategy candidate for the stage
	Generate(ctx context.Context, req StageContext) (*GenerationResult, error)

	// Regenerate revises narrative fields only, given the frozen
	// structural snapshot and the blocking finding descriptions. The
	// caller verifies the structural postcondition; the generator is
	// not trusted to honor it.
	Regenerate(ctx context.Context, req RegenerationRequest) (*GenerationResult, error)
}

// StageContext carries the inputs of a generation call
type StageContext struct {
	RunID         core.RunID         `json:"run_id"`
	Stage         run.StageName      `json:"stage"`
	Slot          int                `json:"slot"`
	Universe      []string           `json:"universe"`
	MarketContext *MarketContext     `json:"market_context,omitempty"`
	Policy        GenerationGuidance `json:"policy"`
}

// GenerationGuidance summarizes the policy constraints the generator
// should respect; violations are still caught by validation.
type GenerationGuidance struct {
	AllowedFrequencies map[string][]string `json:"allowed_frequencies,omitempty"`
	ConcentrationLimit float64             `json:"concentration_limit,omitempty"`
}

// RegenerationRequest carries the frozen structural snapshot plus the
// textual descriptions of the blocking findings to repair.
type RegenerationRequest struct {
	Original            *strategy.Artifact        `json:"original"`
	Frozen              strategy.StructuralFields `json:"frozen"`
	FindingDescriptions []string                  `json:"finding_descriptions"`
}

// GenerationResult is a produced candidate plus its audit trail
type GenerationResult struct {
	Artifact *strategy.Artifact `json:"artifact"`
	Audit    GenerationAudit    `json:"audit"`
}

// DroppedCandidate records why a raw candidate was rejected before it
// became an artifact (audit trail).
type DroppedCandidate struct {
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// GenerationAudit is metadata about a generation call
type GenerationAudit struct {
	GeneratorType string             `json:"generator_type"` // "llm" | "heuristic"
	Model         string             `json:"model,omitempty"`
	PromptHash    core.Hash          `json:"prompt_hash,omitempty"`
	ResponseHash  core.Hash          `json:"response_hash,omitempty"`
	Dropped       []DroppedCandidate `json:"dropped,omitempty"`
}
