package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"stratforge/internal/errors"
	"stratforge/score"
	"stratforge/validate"
)

// ScoringPolicy holds the scorer configuration: dimension weights, the
// composite threshold and per-dimension floors.
type ScoringPolicy struct {
	Weights   map[string]float64 `yaml:"weights"`
	Threshold float64            `yaml:"threshold"`
	Floors    map[string]float64 `yaml:"floors"`
}

// DimensionWeights converts the raw weight table to typed scorer weights
func (s ScoringPolicy) DimensionWeights() score.Weights {
	w := make(score.Weights, len(s.Weights))
	for name, share := range s.Weights {
		w[score.Dimension(name)] = share
	}
	return w
}

// DimensionFloors converts the raw floor table to typed dimension floors
func (s ScoringPolicy) DimensionFloors() map[score.Dimension]float64 {
	floors := make(map[score.Dimension]float64, len(s.Floors))
	for name, floor := range s.Floors {
		floors[score.Dimension(name)] = floor
	}
	return floors
}

// PolicyFile bundles the validation and scoring policy tables loaded from
// a single YAML document.
type PolicyFile struct {
	Validation validate.Policy `yaml:"validation"`
	Scoring    ScoringPolicy   `yaml:"scoring"`
}

// DefaultPolicyFile returns the built-in policy
func DefaultPolicyFile() *PolicyFile {
	weights := score.DefaultWeights()
	rawWeights := make(map[string]float64, len(weights))
	for dim, share := range weights {
		rawWeights[string(dim)] = share
	}
	return &PolicyFile{
		Validation: validate.DefaultPolicy(),
		Scoring: ScoringPolicy{
			Weights:   rawWeights,
			Threshold: 0.70,
			Floors: map[string]float64{
				string(score.DimStructural): 0.50,
				string(score.DimCoherence):  0.50,
			},
		},
	}
}

// LoadPolicy reads the policy YAML at path; an empty path yields defaults
func LoadPolicy(path string) (*PolicyFile, error) {
	if path == "" {
		return DefaultPolicyFile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read policy file %s", path)
	}

	policy := DefaultPolicyFile()
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, errors.Wrapf(err, "failed to parse policy file %s", path)
	}

	if err := policy.Validation.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid validation policy")
	}
	if err := policy.Scoring.DimensionWeights().Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scoring policy")
	}

	return policy, nil
}
