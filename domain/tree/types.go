package tree

import (
	"encoding/json"
	"fmt"
	"sort"
)

// NodeKind discriminates the decision tree variants
type NodeKind string

const (
	KindLeaf        NodeKind = "leaf"
	KindFilter      NodeKind = "filter"
	KindConditional NodeKind = "conditional"
)

// Node is the closed sum of decision tree variants. The sealed marker keeps
// the set of variants fixed to Leaf, Filter and Conditional, so a malformed
// shape is unrepresentable rather than merely invalid at runtime.
type Node interface {
	Kind() NodeKind
	sealed()
}

// Leaf is a terminal allocation: a fixed weight per asset.
// Invariant: weights sum to 1.0 +/- 0.01 and every weight key is in Assets.
type Leaf struct {
	Assets  []string           `json:"assets"`
	Weights map[string]float64 `json:"weights"`
}

func (Leaf) Kind() NodeKind { return KindLeaf }
func (Leaf) sealed()        {}

// Filter is a selection-only terminal: a criterion narrows the asset set,
// no weights are required at this level.
type Filter struct {
	Criterion string   `json:"criterion"`
	Assets    []string `json:"assets"`
}

func (Filter) Kind() NodeKind { return KindFilter }
func (Filter) sealed()        {}

// Conditional branches on a market condition.
// Invariant: the condition contains exactly one comparison operator.
type Conditional struct {
	Condition   string `json:"condition"`
	TrueBranch  Node   `json:"-"`
	FalseBranch Node   `json:"-"`
}

func (Conditional) Kind() NodeKind { return KindConditional }
func (Conditional) sealed()        {}

// Tree wraps the root node so an empty tree (no conditional logic declared)
// has a first-class representation and the whole structure round-trips
// through JSON as a tagged union.
type Tree struct {
	Root Node
}

// Empty returns a tree with no logic
func Empty() Tree { return Tree{} }

// New wraps a root node
func New(root Node) Tree { return Tree{Root: root} }

// IsEmpty reports whether the tree declares no conditional logic
func (t Tree) IsEmpty() bool { return t.Root == nil }

// nodeEnvelope is the wire shape for the tagged union
type nodeEnvelope struct {
	Kind        NodeKind           `json:"kind"`
	Assets      []string           `json:"assets,omitempty"`
	Weights     map[string]float64 `json:"weights,omitempty"`
	Criterion   string             `json:"criterion,omitempty"`
	Condition   string             `json:"condition,omitempty"`
	TrueBranch  json.RawMessage    `json:"true_branch,omitempty"`
	FalseBranch json.RawMessage    `json:"false_branch,omitempty"`
}

// MarshalJSON encodes the tree as a tagged union; an empty tree encodes as null
func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}
	return marshalNode(t.Root)
}

// UnmarshalJSON decodes the tagged union; null and {} decode to an empty tree
func (t *Tree) UnmarshalJSON(data []byte) error {
	root, err := unmarshalNode(data)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func marshalNode(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Leaf:
		return json.Marshal(nodeEnvelope{Kind: KindLeaf, Assets: v.Assets, Weights: v.Weights})
	case Filter:
		return json.Marshal(nodeEnvelope{Kind: KindFilter, Criterion: v.Criterion, Assets: v.Assets})
	case Conditional:
		trueRaw, err := marshalNode(v.TrueBranch)
		if err != nil {
			return nil, err
		}
		falseRaw, err := marshalNode(v.FalseBranch)
		if err != nil {
			return nil, err
		}
		return json.Marshal(nodeEnvelope{
			Kind:        KindConditional,
			Condition:   v.Condition,
			TrueBranch:  trueRaw,
			FalseBranch: falseRaw,
		})
	case nil:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("unknown node type %T", n)
	}
}

func unmarshalNode(data []byte) (Node, error) {
	trimmed := string(data)
	if trimmed == "null" || trimmed == "" || trimmed == "{}" {
		return nil, nil
	}

	var env nodeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode tree node: %w", err)
	}

	switch env.Kind {
	case KindLeaf:
		return Leaf{Assets: env.Assets, Weights: env.Weights}, nil
	case KindFilter:
		return Filter{Criterion: env.Criterion, Assets: env.Assets}, nil
	case KindConditional:
		trueBranch, err := unmarshalNode(env.TrueBranch)
		if err != nil {
			return nil, err
		}
		falseBranch, err := unmarshalNode(env.FalseBranch)
		if err != nil {
			return nil, err
		}
		return Conditional{Condition: env.Condition, TrueBranch: trueBranch, FalseBranch: falseBranch}, nil
	case "":
		return nil, fmt.Errorf("tree node missing kind discriminator")
	default:
		return nil, fmt.Errorf("unknown tree node kind %q", env.Kind)
	}
}

// Clone returns a deep copy of the tree
func (t Tree) Clone() Tree {
	return Tree{Root: cloneNode(t.Root)}
}

func cloneNode(n Node) Node {
	switch v := n.(type) {
	case Leaf:
		assets := make([]string, len(v.Assets))
		copy(assets, v.Assets)
		weights := make(map[string]float64, len(v.Weights))
		for k, w := range v.Weights {
			weights[k] = w
		}
		return Leaf{Assets: assets, Weights: weights}
	case Filter:
		assets := make([]string, len(v.Assets))
		copy(assets, v.Assets)
		return Filter{Criterion: v.Criterion, Assets: assets}
	case Conditional:
		return Conditional{
			Condition:   v.Condition,
			TrueBranch:  cloneNode(v.TrueBranch),
			FalseBranch: cloneNode(v.FalseBranch),
		}
	default:
		return nil
	}
}

// ReferencedAssets returns the sorted set of assets referenced anywhere in the tree
func (t Tree) ReferencedAssets() []string {
	seen := make(map[string]bool)
	collectAssets(t.Root, seen)

	out := make([]string, 0, len(seen))
	for asset := range seen {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

func collectAssets(n Node, seen map[string]bool) {
	switch v := n.(type) {
	case Leaf:
		for _, a := range v.Assets {
			seen[a] = true
		}
		for a := range v.Weights {
			seen[a] = true
		}
	case Filter:
		for _, a := range v.Assets {
			seen[a] = true
		}
	case Conditional:
		collectAssets(v.TrueBranch, seen)
		collectAssets(v.FalseBranch, seen)
	}
}
