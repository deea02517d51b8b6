package strategy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"stratforge/domain/core"
	"stratforge/domain/tree"
)

// RebalanceFrequency enumerates how often a strategy rebalances
type RebalanceFrequency string

const (
	RebalanceDaily     RebalanceFrequency = "daily"
	RebalanceWeekly    RebalanceFrequency = "weekly"
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
)

// ParseRebalanceFrequency parses a string into a RebalanceFrequency
func ParseRebalanceFrequency(s string) (RebalanceFrequency, error) {
	switch RebalanceFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case RebalanceDaily:
		return RebalanceDaily, nil
	case RebalanceWeekly:
		return RebalanceWeekly, nil
	case RebalanceMonthly:
		return RebalanceMonthly, nil
	case RebalanceQuarterly:
		return RebalanceQuarterly, nil
	default:
		return "", fmt.Errorf("unknown rebalance frequency %q", s)
	}
}

// Archetype is the declared strategy style (e.g. "buy_and_hold",
// "tactical_rotation"). Free-form; the archetype-frequency policy table
// constrains only archetypes it lists.
type Archetype string

// Artifact is a generated strategy candidate subject to validation,
// repair and scoring. Once a stage validates an artifact as passing, its
// structural fields are immutable for the rest of the run except through
// the retry controller's single bounded pass.
type Artifact struct {
	ID   core.ArtifactID `json:"id"`
	Name string          `json:"name"`

	// Narrative fields - the only fields a repair may revise
	Thesis      string `json:"thesis"`
	Expectation string `json:"expectation"`

	// Structural fields - frozen across repair
	Archetype Archetype          `json:"archetype"`
	Assets    []string           `json:"assets"`
	Weights   map[string]float64 `json:"weights"`
	Rebalance RebalanceFrequency `json:"rebalance"`
	Tree      tree.Tree          `json:"tree"`

	RepairAttempts int            `json:"repair_attempts"`
	CreatedAt      core.Timestamp `json:"created_at"`
}

// Narrative returns the concatenated free-text fields for keyword scans
func (a *Artifact) Narrative() string {
	return a.Thesis + "\n" + a.Expectation
}

// StructuralFields is the by-value frozen snapshot the retry controller
// compares against after regeneration.
type StructuralFields struct {
	Archetype Archetype          `json:"archetype"`
	Assets    []string           `json:"assets"`
	Weights   map[string]float64 `json:"weights"`
	Rebalance RebalanceFrequency `json:"rebalance"`
	Tree      tree.Tree          `json:"tree"`
}

// Structural returns a deep copy of the artifact's structural fields
func (a *Artifact) Structural() StructuralFields {
	assets := make([]string, len(a.Assets))
	copy(assets, a.Assets)

	weights := make(map[string]float64, len(a.Weights))
	for k, w := range a.Weights {
		weights[k] = w
	}

	return StructuralFields{
		Archetype: a.Archetype,
		Assets:    assets,
		Weights:   weights,
		Rebalance: a.Rebalance,
		Tree:      a.Tree.Clone(),
	}
}

// Hash computes a deterministic hash of the structural snapshot
func (s StructuralFields) Hash() core.Hash {
	canonical := s
	canonical.Assets = make([]string, len(s.Assets))
	copy(canonical.Assets, s.Assets)
	sort.Strings(canonical.Assets)

	data, _ := json.Marshal(canonical)
	return core.NewHash(data)
}

// Validate checks that the artifact carries its required fields
func (a *Artifact) Validate() error {
	if core.ID(a.ID).IsEmpty() {
		return core.NewValidationError("artifact", "id cannot be empty")
	}
	if strings.TrimSpace(a.Name) == "" {
		return core.NewValidationError("artifact", "name cannot be empty")
	}
	if len(a.Assets) == 0 {
		return core.NewValidationError("artifact", "asset set cannot be empty")
	}
	return nil
}
