package validate

import (
	"fmt"
	"regexp"
	"strings"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

// Context carries the run-level inputs validation depends on
type Context struct {
	GlobalAssets []string
}

// Engine runs syntactic and semantic checks over strategy artifacts.
// Validate is a pure function of artifact + context; all checks run
// independently and findings accumulate - downstream consumers need the
// complete finding set, so the engine never short-circuits.
type Engine struct {
	policy         Policy
	keywordPattern *regexp.Regexp
	numericPattern *regexp.Regexp
	ratioPattern   *regexp.Regexp
}

// NewEngine creates a validation engine with the given policy
func NewEngine(policy Policy) *Engine {
	escaped := make([]string, 0, len(policy.ConditionalKeywords))
	for _, kw := range policy.ConditionalKeywords {
		escaped = append(escaped, regexp.QuoteMeta(kw))
	}

	return &Engine{
		policy:         policy,
		keywordPattern: regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`),
		numericPattern: regexp.MustCompile(`\d+(\.\d+)?\s*%|\d+(\.\d+)?\s*(bps|percent|x)\b`),
		ratioPattern:   regexp.MustCompile(`(?i)\b(sharpe|sortino|calmar|alpha|beta|ratio)\b\D{0,24}\d+(\.\d+)?`),
	}
}

// Validate runs every check over the artifact and returns the accumulated findings
func (e *Engine) Validate(a *strategy.Artifact, vctx Context) []core.Finding {
	var findings []core.Finding

	findings = append(findings, e.checkRequiredFields(a)...)
	findings = append(findings, e.checkWeightConsistency(a)...)
	findings = append(findings, a.Tree.Validate(a.ID, vctx.GlobalAssets)...)
	findings = append(findings, e.checkCoherence(a)...)
	findings = append(findings, e.checkFrequency(a)...)
	findings = append(findings, e.checkConcentration(a)...)
	findings = append(findings, e.checkQuantification(a)...)

	return findings
}

// checkRequiredFields verifies the artifact's required fields are present
func (e *Engine) checkRequiredFields(a *strategy.Artifact) []core.Finding {
	var findings []core.Finding
	if strings.TrimSpace(a.Name) == "" {
		findings = append(findings, core.Blocking(a.ID, core.CodeMissingField, "artifact name is empty"))
	}
	if strings.TrimSpace(a.Thesis) == "" {
		findings = append(findings, core.Blocking(a.ID, core.CodeMissingField, "artifact thesis is empty"))
	}
	if len(a.Assets) == 0 {
		findings = append(findings, core.Blocking(a.ID, core.CodeMissingField, "artifact declares no assets"))
	}
	if a.Rebalance == "" {
		findings = append(findings, core.Blocking(a.ID, core.CodeMissingField, "artifact declares no rebalance frequency"))
	}
	return findings
}

// checkWeightConsistency verifies the top-level weight map against the
// declared asset set: every weight key must be a declared asset, and a
// non-empty weight map must sum to 1.0 within tolerance.
func (e *Engine) checkWeightConsistency(a *strategy.Artifact) []core.Finding {
	var findings []core.Finding

	declared := make(map[string]bool, len(a.Assets))
	for _, asset := range a.Assets {
		declared[asset] = true
	}

	sum := 0.0
	for key, w := range a.Weights {
		sum += w
		if !declared[key] {
			findings = append(findings, core.Blocking(a.ID, core.CodeAssetNotDeclared,
				"weight key %q is not in the declared asset set", key))
		}
	}
	if len(a.Weights) > 0 && (sum < 0.99 || sum > 1.01) {
		findings = append(findings, core.Blocking(a.ID, core.CodeWeightSumInvalid,
			"allocation weights sum to %.4f, expected 1.0 +/- 0.01", sum))
	}

	return findings
}

// checkCoherence cross-checks narrative against the tree: conditional
// language in the narrative requires a non-empty decision tree.
func (e *Engine) checkCoherence(a *strategy.Artifact) []core.Finding {
	if !a.Tree.IsEmpty() {
		return nil
	}
	match := e.keywordPattern.FindString(a.Narrative())
	if match == "" {
		return nil
	}
	return []core.Finding{core.Blocking(a.ID, core.CodeMissingLogicTree,
		"narrative uses conditional language (%q) but the decision tree is empty", match)}
}

// checkFrequency enforces the archetype-frequency policy table
func (e *Engine) checkFrequency(a *strategy.Artifact) []core.Finding {
	if a.Archetype == "" || a.Rebalance == "" {
		return nil
	}
	if e.policy.FrequencyAllowed(a.Archetype, a.Rebalance) {
		return nil
	}
	allowed := e.policy.AllowedFrequencies[string(a.Archetype)]
	return []core.Finding{core.Blocking(a.ID, core.CodeFrequencyMismatch,
		"archetype %q does not allow %s rebalancing (allowed: %s)",
		a.Archetype, a.Rebalance, strings.Join(allowed, ", "))}
}

// checkConcentration flags single-asset weights above the policy ceilings:
// advisory above the first ceiling, blocking above the second.
func (e *Engine) checkConcentration(a *strategy.Artifact) []core.Finding {
	var findings []core.Finding
	for asset, w := range a.Weights {
		msg := fmt.Sprintf("asset %q carries %.0f%% of the allocation", asset, w*100)
		switch {
		case w > e.policy.ConcentrationBlocking:
			findings = append(findings, core.Blocking(a.ID, core.CodeConcentrationHigh,
				"%s, above the %.0f%% hard ceiling", msg, e.policy.ConcentrationBlocking*100))
		case w > e.policy.ConcentrationAdvisory:
			findings = append(findings, core.Advisory(a.ID, core.CodeConcentrationHigh,
				"%s, above the %.0f%% advisory ceiling", msg, e.policy.ConcentrationAdvisory*100))
		}
	}
	return findings
}

// checkQuantification looks for a numeric performance expectation in the
// narrative: either a number with a unit suffix, or a bare number attached to
// performance-ratio vocabulary ("Sharpe ratio of 1.2").
func (e *Engine) checkQuantification(a *strategy.Artifact) []core.Finding {
	narrative := a.Narrative()
	if e.numericPattern.MatchString(narrative) || e.ratioPattern.MatchString(narrative) {
		return nil
	}
	return []core.Finding{core.Advisory(a.ID, core.CodeMissingQuantification,
		"narrative contains no numeric performance expectation")}
}
