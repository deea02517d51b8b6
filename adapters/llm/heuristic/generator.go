package heuristic

import (
	"context"
	"fmt"
	"strings"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
	"stratforge/domain/tree"
	"stratforge/ports"
)

// Generator creates strategy candidates algorithmically, without an LLM.
// Useful for demos and for exercising the pipeline offline; candidates
// are deterministic given the slot and universe.
type Generator struct{}

// NewGenerator creates a heuristic strategy generator
func NewGenerator() *Generator {
	return &Generator{}
}

// archetypeCycle rotates candidate styles across slots
var archetypeCycle = []struct {
	archetype strategy.Archetype
	rebalance strategy.RebalanceFrequency
}{
	{"buy_and_hold", strategy.RebalanceQuarterly},
	{"momentum", strategy.RebalanceMonthly},
	{"tactical_rotation", strategy.RebalanceWeekly},
	{"risk_parity", strategy.RebalanceMonthly},
}

// Generate builds one deterministic candidate for the slot
func (g *Generator) Generate(ctx context.Context, req ports.StageContext) (*ports.GenerationResult, error) {
	if len(req.Universe) == 0 {
		return nil, fmt.Errorf("heuristic generator requires a non-empty universe")
	}

	style := archetypeCycle[req.Slot%len(archetypeCycle)]

	// Pick a rotating window of assets from the universe
	count := 3 + req.Slot%2
	if count > len(req.Universe) {
		count = len(req.Universe)
	}
	assets := make([]string, 0, count)
	for i := 0; i < count; i++ {
		assets = append(assets, req.Universe[(req.Slot+i)%len(req.Universe)])
	}

	var dropped []ports.DroppedCandidate
	weights := concentratedWeights(assets)
	if limit := req.Policy.ConcentrationLimit; limit > 0 && maxWeight(weights) > limit {
		// First draft breached the concentration guidance; fall back to
		// equal weight and keep the audit trail of the discard.
		dropped = append(dropped, ports.DroppedCandidate{
			Index:   0,
			Reason:  "concentration",
			Message: fmt.Sprintf("draft allocation exceeded %.0f%% single-asset limit", limit*100),
		})
		weights = equalWeights(assets)
	}

	a := &strategy.Artifact{
		ID:          core.ArtifactID(core.NewID()),
		Name:        fmt.Sprintf("%s-%d", style.archetype, req.Slot+1),
		Archetype:   style.archetype,
		Assets:      assets,
		Weights:     weights,
		Rebalance:   style.rebalance,
		CreatedAt:   core.Now(),
		Expectation: fmt.Sprintf("Targets a 6%% to 9%% annual return with drawdowns under 15%% across %s rebalances.", style.rebalance),
	}

	if style.archetype == "tactical_rotation" {
		a.Thesis = fmt.Sprintf("Rotate between %s and %s when the risk regime shifts, holding the defensive sleeve in stress.",
			assets[0], assets[len(assets)-1])
		a.Tree = rotationTree(assets)
	} else {
		a.Thesis = fmt.Sprintf("Hold a fixed allocation across %s to harvest long-run risk premia.",
			strings.Join(assets, ", "))
	}

	return &ports.GenerationResult{
		Artifact: a,
		Audit: ports.GenerationAudit{
			GeneratorType: "heuristic",
			Dropped:       dropped,
		},
	}, nil
}

// Regenerate revises the narrative only, echoing the frozen structural
// fields back untouched.
func (g *Generator) Regenerate(ctx context.Context, req ports.RegenerationRequest) (*ports.GenerationResult, error) {
	revised := &strategy.Artifact{
		ID:        req.Original.ID,
		Name:      req.Original.Name,
		Archetype: req.Frozen.Archetype,
		Assets:    req.Frozen.Assets,
		Weights:   req.Frozen.Weights,
		Rebalance: req.Frozen.Rebalance,
		Tree:      req.Frozen.Tree,
		CreatedAt: req.Original.CreatedAt,
	}

	revised.Thesis = fmt.Sprintf("Hold a fixed allocation across %s to harvest long-run risk premia.",
		strings.Join(req.Frozen.Assets, ", "))
	revised.Expectation = "Targets a 7% annual return with drawdowns under 15%."

	return &ports.GenerationResult{
		Artifact: revised,
		Audit:    ports.GenerationAudit{GeneratorType: "heuristic"},
	}, nil
}

func equalWeights(assets []string) map[string]float64 {
	w := make(map[string]float64, len(assets))
	share := 1.0 / float64(len(assets))
	for _, a := range assets {
		w[a] = share
	}
	return w
}

// concentratedWeights tilts half the book into the first asset
func concentratedWeights(assets []string) map[string]float64 {
	if len(assets) == 1 {
		return map[string]float64{assets[0]: 1.0}
	}
	w := make(map[string]float64, len(assets))
	w[assets[0]] = 0.5
	share := 0.5 / float64(len(assets)-1)
	for _, a := range assets[1:] {
		w[a] = share
	}
	return w
}

func maxWeight(weights map[string]float64) float64 {
	max := 0.0
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	return max
}

// rotationTree encodes a simple two-branch regime switch
func rotationTree(assets []string) tree.Tree {
	growth := assets[0]
	defensive := assets[len(assets)-1]
	return tree.New(tree.Conditional{
		Condition: "vix < 20",
		TrueBranch: tree.Leaf{
			Assets:  []string{growth},
			Weights: map[string]float64{growth: 1.0},
		},
		FalseBranch: tree.Leaf{
			Assets:  []string{defensive},
			Weights: map[string]float64{defensive: 1.0},
		},
	})
}
