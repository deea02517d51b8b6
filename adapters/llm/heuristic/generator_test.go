package heuristic

import (
	"context"
	"testing"

	"stratforge/domain/core"
	"stratforge/ports"
	"stratforge/validate"
)

var testUniverse = []string{"AGG", "GLD", "QQQ", "SPY", "TLT"}

func generate(t *testing.T, slot int, guidance ports.GenerationGuidance) *ports.GenerationResult {
	t.Helper()
	result, err := NewGenerator().Generate(context.Background(), ports.StageContext{
		RunID:    core.RunID(core.NewID()),
		Slot:     slot,
		Universe: testUniverse,
		Policy:   guidance,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return result
}

func TestGenerate_CandidatesPassValidation(t *testing.T) {
	engine := validate.NewEngine(validate.DefaultPolicy())
	vctx := validate.Context{GlobalAssets: testUniverse}

	for slot := 0; slot < 8; slot++ {
		result := generate(t, slot, ports.GenerationGuidance{ConcentrationLimit: 0.60})
		findings := engine.Validate(result.Artifact, vctx)
		if core.HasBlocking(findings) {
			t.Errorf("slot %d candidate %s has blocking findings: %v",
				slot, result.Artifact.Name, core.BlockingOnly(findings))
		}
	}
}

func TestGenerate_SlotDeterminesShape(t *testing.T) {
	a := generate(t, 0, ports.GenerationGuidance{}).Artifact
	b := generate(t, 0, ports.GenerationGuidance{}).Artifact

	if a.Archetype != b.Archetype || a.Rebalance != b.Rebalance {
		t.Error("same slot should produce the same style")
	}
	if len(a.Assets) != len(b.Assets) {
		t.Error("same slot should produce the same asset window")
	}
	if a.ID == b.ID {
		t.Error("each candidate still gets a fresh identity")
	}
}

func TestGenerate_TacticalRotationCarriesTree(t *testing.T) {
	// Slot 2 is the tactical_rotation style in the cycle
	a := generate(t, 2, ports.GenerationGuidance{}).Artifact

	if a.Archetype != "tactical_rotation" {
		t.Fatalf("slot 2 archetype = %s", a.Archetype)
	}
	if a.Tree.IsEmpty() {
		t.Error("tactical rotation must declare a decision tree")
	}
	if len(a.Tree.ReferencedAssets()) == 0 {
		t.Error("rotation tree references no assets")
	}
}

func TestGenerate_ConcentrationGuidanceFallsBackToEqualWeight(t *testing.T) {
	result := generate(t, 0, ports.GenerationGuidance{ConcentrationLimit: 0.40})

	for asset, w := range result.Artifact.Weights {
		if w > 0.40+1e-9 {
			t.Errorf("asset %s weight %.2f breaches the guidance limit", asset, w)
		}
	}
	if len(result.Audit.Dropped) != 1 {
		t.Errorf("discarded draft should leave an audit record, got %v", result.Audit.Dropped)
	}
	if result.Audit.Dropped[0].Reason != "concentration" {
		t.Errorf("drop reason = %s", result.Audit.Dropped[0].Reason)
	}
}

func TestGenerate_EmptyUniverseRejected(t *testing.T) {
	_, err := NewGenerator().Generate(context.Background(), ports.StageContext{Slot: 0})
	if err == nil {
		t.Error("empty universe should be rejected")
	}
}

func TestRegenerate_EchoesFrozenStructure(t *testing.T) {
	original := generate(t, 0, ports.GenerationGuidance{}).Artifact
	frozen := original.Structural()

	result, err := NewGenerator().Regenerate(context.Background(), ports.RegenerationRequest{
		Original:            original,
		Frozen:              frozen,
		FindingDescriptions: []string{"[blocking] MISSING_QUANTIFICATION: no numbers"},
	})
	if err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}

	revised := result.Artifact
	if revised.ID != original.ID {
		t.Error("regeneration must preserve identity")
	}
	if revised.Structural().Hash() != frozen.Hash() {
		t.Error("regeneration must not move the structural snapshot")
	}
	if revised.Thesis == "" || revised.Expectation == "" {
		t.Error("regeneration should produce a narrative")
	}
}
