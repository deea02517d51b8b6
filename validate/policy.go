package validate

import (
	"fmt"

	"stratforge/domain/strategy"
)

// Policy holds the semantic validation tables. It is an explicit immutable
// value passed into the engine at construction; there is no ambient state.
type Policy struct {
	// ConditionalKeywords trigger the coherence check: narrative text that
	// matches any of these must come with a non-empty decision tree.
	ConditionalKeywords []string `yaml:"conditional_keywords"`

	// AllowedFrequencies maps a declared archetype to its permitted
	// rebalance frequencies. Archetypes not listed are unconstrained.
	AllowedFrequencies map[string][]string `yaml:"allowed_frequencies"`

	// ConcentrationAdvisory is the single-asset weight ceiling above which
	// an advisory finding is emitted; ConcentrationBlocking is the higher
	// ceiling above which the finding is blocking.
	ConcentrationAdvisory float64 `yaml:"concentration_advisory"`
	ConcentrationBlocking float64 `yaml:"concentration_blocking"`
}

// DefaultPolicy returns the built-in policy tables
func DefaultPolicy() Policy {
	return Policy{
		ConditionalKeywords: []string{
			"if", "when", "rotate", "rotation", "switch",
			"tactical", "regime", "unless", "crossover",
		},
		AllowedFrequencies: map[string][]string{
			"buy_and_hold":      {"monthly", "quarterly"},
			"tactical_rotation": {"daily", "weekly", "monthly"},
			"momentum":          {"daily", "weekly", "monthly"},
			"risk_parity":       {"weekly", "monthly", "quarterly"},
		},
		ConcentrationAdvisory: 0.40,
		ConcentrationBlocking: 0.60,
	}
}

// Validate checks the policy tables for internal consistency
func (p Policy) Validate() error {
	if p.ConcentrationAdvisory <= 0 || p.ConcentrationAdvisory > 1 {
		return fmt.Errorf("concentration_advisory must be in (0,1], got %.2f", p.ConcentrationAdvisory)
	}
	if p.ConcentrationBlocking <= p.ConcentrationAdvisory {
		return fmt.Errorf("concentration_blocking (%.2f) must exceed concentration_advisory (%.2f)",
			p.ConcentrationBlocking, p.ConcentrationAdvisory)
	}
	for archetype, freqs := range p.AllowedFrequencies {
		if len(freqs) == 0 {
			return fmt.Errorf("archetype %q allows no frequencies", archetype)
		}
		for _, f := range freqs {
			if _, err := strategy.ParseRebalanceFrequency(f); err != nil {
				return fmt.Errorf("archetype %q: %w", archetype, err)
			}
		}
	}
	return nil
}

// FrequencyAllowed reports whether the (archetype, frequency) pair is
// permitted by the policy table. Unlisted archetypes are unconstrained.
func (p Policy) FrequencyAllowed(archetype strategy.Archetype, freq strategy.RebalanceFrequency) bool {
	allowed, ok := p.AllowedFrequencies[string(archetype)]
	if !ok {
		return true
	}
	for _, f := range allowed {
		if strategy.RebalanceFrequency(f) == freq {
			return true
		}
	}
	return false
}
