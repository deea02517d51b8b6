package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"stratforge/ports"
)

// SystemContext frames every generation call
const SystemContext = `You are a portfolio strategy designer. You produce candidate
trading strategies as strict JSON objects, using only assets from the provided
universe. Every leaf allocation's weights must sum to 1.0. Conditional logic must
use exactly one comparison operator per condition.`

// candidateSchema documents the expected response shape for the model
const candidateSchema = `{
  "name": "string",
  "thesis": "string - why this strategy should work",
  "expectation": "string - numeric performance expectation, e.g. target return %",
  "archetype": "buy_and_hold | tactical_rotation | momentum | risk_parity",
  "assets": ["SYMBOL", ...],
  "weights": {"SYMBOL": 0.0, ...},
  "rebalance": "daily | weekly | monthly | quarterly",
  "tree": null | {
    "kind": "leaf | filter | conditional",
    "assets": [...], "weights": {...},
    "criterion": "string",
    "condition": "string with exactly one of > < >= <= == !=",
    "true_branch": {...}, "false_branch": {...}
  }
}`

// BuildGenerationPrompt renders the prompt for a fresh candidate
func BuildGenerationPrompt(req ports.StageContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Design one candidate trading strategy (candidate #%d for this batch).\n\n", req.Slot+1)
	fmt.Fprintf(&b, "Asset universe (use only these symbols):\n%s\n\n", strings.Join(req.Universe, ", "))

	if req.MarketContext.Present() {
		fmt.Fprintf(&b, "Market context as of %s:\n%s\n\n", req.MarketContext.AsOf, string(req.MarketContext.Payload))
	}

	if len(req.Policy.AllowedFrequencies) > 0 {
		policyJSON, _ := json.Marshal(req.Policy.AllowedFrequencies)
		fmt.Fprintf(&b, "Archetype rebalance policy (archetype -> allowed frequencies):\n%s\n\n", policyJSON)
	}
	if req.Policy.ConcentrationLimit > 0 {
		fmt.Fprintf(&b, "Keep any single asset below %.0f%% of the allocation.\n\n", req.Policy.ConcentrationLimit*100)
	}

	fmt.Fprintf(&b, "Respond with one JSON object of this shape:\n%s\n", candidateSchema)
	b.WriteString("\nIf the strategy is unconditional, set \"tree\" to null. If the thesis describes\nrotation or regime switching, the tree must encode that logic.")

	return b.String()
}

// BuildRegenerationPrompt renders the surgical repair prompt: the frozen
// structural snapshot is included verbatim and must be returned unchanged;
// only narrative fields may be revised.
func BuildRegenerationPrompt(req ports.RegenerationRequest) string {
	var b strings.Builder

	frozenJSON, _ := json.MarshalIndent(req.Frozen, "", "  ")

	b.WriteString("A strategy candidate failed validation and needs its narrative revised.\n\n")
	fmt.Fprintf(&b, "Strategy name: %s\n\n", req.Original.Name)
	b.WriteString("FROZEN structural fields - return these EXACTLY as given, byte for byte.\n")
	b.WriteString("Do NOT change the archetype, assets, weights, rebalance frequency, or the decision tree:\n")
	fmt.Fprintf(&b, "%s\n\n", frozenJSON)

	b.WriteString("Blocking validation findings to address by revising ONLY the thesis and\nexpectation text:\n")
	for i, desc := range req.FindingDescriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, desc)
	}

	fmt.Fprintf(&b, "\nCurrent thesis:\n%s\n\nCurrent expectation:\n%s\n", req.Original.Thesis, req.Original.Expectation)
	fmt.Fprintf(&b, "\nRespond with one JSON object of this shape:\n%s\n", candidateSchema)
	fmt.Fprintf(&b, "\nSet name to %q, archetype to %q, and copy the frozen structural fields unchanged.",
		req.Original.Name, req.Original.Archetype)

	return b.String()
}
