package tree

import (
	"math"
	"strings"

	"stratforge/domain/core"
)

// WeightSumTolerance bounds how far leaf weights may drift from 1.0
const WeightSumTolerance = 0.01

// comparison operators allowed in a conditional, two-character forms first
// so that ">=" is not double-counted as ">" plus "="
var twoCharOps = []string{">=", "<=", "==", "!="}
var oneCharOps = []string{">", "<"}

// Validate checks the tree's structural invariants against the artifact's
// declared global asset list. It accumulates findings rather than stopping
// at the first failure; an empty tree yields no findings here (the coherence
// cross-check against narrative text belongs to the validation engine).
func (t Tree) Validate(artifactID core.ArtifactID, globalAssets []string) []core.Finding {
	if t.Root == nil {
		return nil
	}

	declared := make(map[string]bool, len(globalAssets))
	for _, a := range globalAssets {
		declared[a] = true
	}

	var findings []core.Finding
	walkValidate(t.Root, artifactID, declared, &findings)
	return findings
}

func walkValidate(n Node, artifactID core.ArtifactID, declared map[string]bool, findings *[]core.Finding) {
	switch v := n.(type) {
	case Leaf:
		sum := 0.0
		for _, w := range v.Weights {
			sum += w
		}
		if math.Abs(sum-1.0) > WeightSumTolerance {
			*findings = append(*findings, core.Blocking(artifactID, core.CodeWeightSumInvalid,
				"leaf weights sum to %.4f, expected 1.0 +/- %.2f", sum, WeightSumTolerance))
		}

		assetSet := make(map[string]bool, len(v.Assets))
		for _, a := range v.Assets {
			assetSet[a] = true
			checkDeclared(a, artifactID, declared, findings)
		}
		for key := range v.Weights {
			if assetSet[key] {
				continue // already checked against the global list above
			}
			*findings = append(*findings, core.Blocking(artifactID, core.CodeAssetNotDeclared,
				"weight key %q is not in the leaf asset set", key))
			checkDeclared(key, artifactID, declared, findings)
		}

	case Filter:
		if strings.TrimSpace(v.Criterion) == "" {
			*findings = append(*findings, core.Blocking(artifactID, core.CodeMissingField,
				"filter node has an empty criterion"))
		}
		for _, a := range v.Assets {
			checkDeclared(a, artifactID, declared, findings)
		}

	case Conditional:
		if CountComparisonOperators(v.Condition) != 1 {
			*findings = append(*findings, core.Blocking(artifactID, core.CodeConditionUnparseable,
				"condition %q must contain exactly one comparison operator", v.Condition))
		}
		if v.TrueBranch == nil || v.FalseBranch == nil {
			*findings = append(*findings, core.Blocking(artifactID, core.CodeMissingField,
				"conditional node %q is missing a branch", v.Condition))
		}
		if v.TrueBranch != nil {
			walkValidate(v.TrueBranch, artifactID, declared, findings)
		}
		if v.FalseBranch != nil {
			walkValidate(v.FalseBranch, artifactID, declared, findings)
		}
	}
}

func checkDeclared(asset string, artifactID core.ArtifactID, declared map[string]bool, findings *[]core.Finding) {
	if !declared[asset] {
		*findings = append(*findings, core.Blocking(artifactID, core.CodeAssetNotDeclared,
			"asset %q is not in the declared global asset list", asset))
	}
}

// CountComparisonOperators counts comparison operators in a condition string.
// Two-character operators are consumed before single-character ones so ">="
// counts once, not as ">" and "=".
func CountComparisonOperators(condition string) int {
	count := 0
	remaining := condition
	for _, op := range twoCharOps {
		count += strings.Count(remaining, op)
		remaining = strings.ReplaceAll(remaining, op, " ")
	}
	for _, op := range oneCharOps {
		count += strings.Count(remaining, op)
	}
	return count
}
