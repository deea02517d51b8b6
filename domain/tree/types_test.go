package tree

import (
	"encoding/json"
	"reflect"
	"testing"
)

func conditionalFixture() Tree {
	return New(Conditional{
		Condition: "vix < 20",
		TrueBranch: Leaf{
			Assets:  []string{"QQQ", "SPY"},
			Weights: map[string]float64{"QQQ": 0.4, "SPY": 0.6},
		},
		FalseBranch: Filter{
			Criterion: "momentum > 0",
			Assets:    []string{"GLD", "TLT"},
		},
	})
}

func TestTreeJSON_RoundTrip(t *testing.T) {
	original := conditionalFixture()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Tree
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Errorf("round trip diverged:\noriginal: %#v\ndecoded:  %#v", original, decoded)
	}
}

func TestTreeJSON_KindDiscriminator(t *testing.T) {
	data, err := json.Marshal(New(Leaf{Assets: []string{"SPY"}, Weights: map[string]float64{"SPY": 1.0}}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope failed: %v", err)
	}
	if envelope["kind"] != "leaf" {
		t.Errorf("kind = %v, want leaf", envelope["kind"])
	}
}

func TestTreeJSON_EmptyTree(t *testing.T) {
	data, err := json.Marshal(Empty())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("empty tree marshals to %s, want null", data)
	}

	for _, raw := range []string{"null", "{}"} {
		var decoded Tree
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			t.Fatalf("unmarshal %q failed: %v", raw, err)
		}
		if !decoded.IsEmpty() {
			t.Errorf("unmarshal %q should yield an empty tree", raw)
		}
	}
}

func TestTreeJSON_UnknownKindRejected(t *testing.T) {
	var decoded Tree
	err := json.Unmarshal([]byte(`{"kind":"portfolio"}`), &decoded)
	if err == nil {
		t.Error("unknown kind should fail to decode")
	}
}

func TestTreeClone_Independent(t *testing.T) {
	original := conditionalFixture()
	clone := original.Clone()

	leaf := clone.Root.(Conditional).TrueBranch.(Leaf)
	leaf.Weights["SPY"] = 0.0
	leaf.Assets[0] = "XXX"

	origLeaf := original.Root.(Conditional).TrueBranch.(Leaf)
	if origLeaf.Weights["SPY"] != 0.6 {
		t.Error("mutating the clone's weights leaked into the original")
	}
	if origLeaf.Assets[0] != "QQQ" {
		t.Error("mutating the clone's assets leaked into the original")
	}
}

func TestReferencedAssets_SortedAndDeduplicated(t *testing.T) {
	got := conditionalFixture().ReferencedAssets()
	want := []string{"GLD", "QQQ", "SPY", "TLT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReferencedAssets = %v, want %v", got, want)
	}

	if assets := Empty().ReferencedAssets(); len(assets) != 0 {
		t.Errorf("empty tree references %v, want none", assets)
	}
}
