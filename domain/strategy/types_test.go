package strategy

import (
	"testing"

	"stratforge/domain/core"
	"stratforge/domain/tree"
)

func sampleArtifact() *Artifact {
	return &Artifact{
		ID:          core.ArtifactID(core.NewID()),
		Name:        "Balanced Core",
		Thesis:      "Hold a diversified core allocation.",
		Expectation: "Expect 6% annualized return.",
		Archetype:   "buy_and_hold",
		Assets:      []string{"SPY", "TLT"},
		Weights:     map[string]float64{"SPY": 0.6, "TLT": 0.4},
		Rebalance:   RebalanceQuarterly,
		Tree:        tree.Empty(),
		CreatedAt:   core.Now(),
	}
}

func TestParseRebalanceFrequency(t *testing.T) {
	cases := []struct {
		in      string
		want    RebalanceFrequency
		wantErr bool
	}{
		{"daily", RebalanceDaily, false},
		{"Weekly", RebalanceWeekly, false},
		{" MONTHLY ", RebalanceMonthly, false},
		{"quarterly", RebalanceQuarterly, false},
		{"annually", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseRebalanceFrequency(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRebalanceFrequency(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRebalanceFrequency(%q) failed: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseRebalanceFrequency(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestStructural_DeepCopy(t *testing.T) {
	a := sampleArtifact()
	frozen := a.Structural()

	// Mutate the artifact after freezing; the snapshot must not move.
	a.Weights["SPY"] = 0.9
	a.Assets[0] = "XXX"
	a.Rebalance = RebalanceDaily
	a.Archetype = "momentum"

	if frozen.Weights["SPY"] != 0.6 {
		t.Error("snapshot weights follow the artifact's mutation")
	}
	if frozen.Assets[0] != "SPY" {
		t.Error("snapshot assets follow the artifact's mutation")
	}
	if frozen.Rebalance != RebalanceQuarterly {
		t.Error("snapshot rebalance follows the artifact's mutation")
	}
	if frozen.Archetype != "buy_and_hold" {
		t.Error("snapshot archetype follows the artifact's mutation")
	}
}

func TestStructuralHash_Deterministic(t *testing.T) {
	a := sampleArtifact()
	h1 := a.Structural().Hash()
	h2 := a.Structural().Hash()
	if h1 != h2 {
		t.Errorf("hashes of identical snapshots differ: %s vs %s", h1, h2)
	}
}

func TestStructuralHash_AssetOrderInsensitive(t *testing.T) {
	a := sampleArtifact()
	b := sampleArtifact()
	b.ID = a.ID
	b.Assets = []string{"TLT", "SPY"}

	if a.Structural().Hash() != b.Structural().Hash() {
		t.Error("asset declaration order should not change the structural hash")
	}
}

func TestStructuralHash_ChangesOnStructuralEdit(t *testing.T) {
	a := sampleArtifact()
	base := a.Structural().Hash()

	a.Weights["SPY"] = 0.5
	a.Weights["TLT"] = 0.5
	if a.Structural().Hash() == base {
		t.Error("changing weights should change the structural hash")
	}

	b := sampleArtifact()
	b.Archetype = "momentum"
	if b.Structural().Hash() == base {
		t.Error("changing the archetype should change the structural hash")
	}
}

func TestArtifactValidate(t *testing.T) {
	a := sampleArtifact()
	if err := a.Validate(); err != nil {
		t.Errorf("valid artifact rejected: %v", err)
	}

	missing := sampleArtifact()
	missing.Name = "  "
	if err := missing.Validate(); err == nil {
		t.Error("blank name should be rejected")
	}

	noAssets := sampleArtifact()
	noAssets.Assets = nil
	if err := noAssets.Validate(); err == nil {
		t.Error("empty asset set should be rejected")
	}
}

func TestNarrative_ConcatenatesFreeText(t *testing.T) {
	a := sampleArtifact()
	n := a.Narrative()
	if n != a.Thesis+"\n"+a.Expectation {
		t.Errorf("Narrative() = %q", n)
	}
}
