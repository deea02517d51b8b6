package run

import (
	"encoding/json"

	"stratforge/domain/core"
)

// StageName names a stage in the pipeline
type StageName string

// Predefined stage names, in canonical order
const (
	StageGenerate StageName = "generate"
	StageValidate StageName = "validate_repair"
	StageScore    StageName = "score_select"
	StageFinalize StageName = "finalize"
	StageDeploy   StageName = "deploy"
)

// StageSpec defines a single stage in the pipeline
type StageSpec struct {
	Name StageName `json:"name"`

	// MinViable is the minimum artifact count the stage must carry
	// forward; falling below fails the run.
	MinViable int `json:"min_viable"`

	// MaxCandidates bounds how many generation calls the stage fans out
	// (generate stage only).
	MaxCandidates int `json:"max_candidates,omitempty"`
}

// Plan is an ordered, named stage list
type Plan struct {
	Stages []StageSpec `json:"stages"`
}

// DefaultPlan returns the canonical five-stage plan
func DefaultPlan(candidates, minViable int) Plan {
	return Plan{Stages: []StageSpec{
		{Name: StageGenerate, MinViable: minViable, MaxCandidates: candidates},
		{Name: StageValidate, MinViable: minViable},
		{Name: StageScore, MinViable: 1},
		{Name: StageFinalize, MinViable: 1},
		{Name: StageDeploy, MinViable: 1},
	}}
}

// Hash computes a deterministic hash of the stage plan. Order matters:
// two plans with the same stages in different order are different plans.
func (p Plan) Hash() core.StagePlanHash {
	data, _ := json.Marshal(p.Stages)
	return core.NewStagePlanHash(data)
}

// Validate checks if the stage plan is valid
func (p Plan) Validate() error {
	if len(p.Stages) == 0 {
		return core.NewValidationError("stage_plan", "must contain at least one stage")
	}

	seen := make(map[StageName]bool)
	for _, spec := range p.Stages {
		if spec.Name == "" {
			return core.NewValidationError("stage", "name cannot be empty")
		}
		if seen[spec.Name] {
			return core.NewValidationError("stage", "duplicate stage name: "+string(spec.Name))
		}
		if spec.MinViable < 0 {
			return core.NewValidationError("stage", "min_viable cannot be negative")
		}
		seen[spec.Name] = true
	}
	return nil
}

// IndexOf returns the position of a stage in the plan, or -1 if absent
func (p Plan) IndexOf(name StageName) int {
	for i, spec := range p.Stages {
		if spec.Name == name {
			return i
		}
	}
	return -1
}
