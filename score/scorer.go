package score

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"stratforge/domain/core"
	"stratforge/domain/strategy"
)

// Dimension names a quality scoring axis
type Dimension string

const (
	DimStructural      Dimension = "structural_validity"
	DimCoherence       Dimension = "coherence"
	DimQuantification  Dimension = "quantification"
	DimDiversification Dimension = "diversification"
	DimRiskAlignment   Dimension = "risk_alignment"
)

// dimensionOrder fixes the axis ordering for composite computation
var dimensionOrder = []Dimension{
	DimStructural, DimCoherence, DimQuantification, DimDiversification, DimRiskAlignment,
}

// Weights maps each dimension to its share of the composite; must sum to 1.0
type Weights map[Dimension]float64

// DefaultWeights returns the built-in dimension weights
func DefaultWeights() Weights {
	return Weights{
		DimStructural:      0.35,
		DimCoherence:       0.20,
		DimQuantification:  0.10,
		DimDiversification: 0.20,
		DimRiskAlignment:   0.15,
	}
}

// Validate checks that the weights cover every dimension and sum to 1.0
func (w Weights) Validate() error {
	sum := 0.0
	for _, dim := range dimensionOrder {
		share, ok := w[dim]
		if !ok {
			return fmt.Errorf("missing weight for dimension %s", dim)
		}
		if share < 0 {
			return fmt.Errorf("weight for dimension %s is negative", dim)
		}
		sum += share
	}
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("dimension weights sum to %.4f, expected 1.0", sum)
	}
	return nil
}

// QualityScore is the scorer's output for one artifact
type QualityScore struct {
	ArtifactID core.ArtifactID       `json:"artifact_id"`
	Dimensions map[Dimension]float64 `json:"dimensions"`
	Composite  float64               `json:"composite"`
}

// Scorer derives per-dimension scores deterministically from the finding
// set and artifact content, and aggregates them into a weighted composite.
// It provides the ranking signal for selection; it does not itself decide
// promotion or rejection.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given dimension weights
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Score computes the quality score for an artifact from its finding set
func (s *Scorer) Score(a *strategy.Artifact, findings []core.Finding) QualityScore {
	dims := map[Dimension]float64{
		DimStructural:      structuralScore(findings),
		DimCoherence:       absenceScore(findings, core.CodeMissingLogicTree),
		DimQuantification:  absenceScore(findings, core.CodeMissingQuantification),
		DimDiversification: diversificationScore(a),
		DimRiskAlignment:   riskAlignmentScore(findings),
	}

	dimVec := make([]float64, len(dimensionOrder))
	weightVec := make([]float64, len(dimensionOrder))
	for i, dim := range dimensionOrder {
		dimVec[i] = dims[dim]
		weightVec[i] = s.weights[dim]
	}

	return QualityScore{
		ArtifactID: a.ID,
		Dimensions: dims,
		Composite:  floats.Dot(dimVec, weightVec),
	}
}

// PassesGate returns true only if the composite clears the threshold and
// every dimension clears its floor, so a single catastrophic dimension
// cannot be masked by strong scores elsewhere.
func (s *Scorer) PassesGate(qs QualityScore, threshold float64, floors map[Dimension]float64) bool {
	if qs.Composite < threshold {
		return false
	}
	for dim, floor := range floors {
		if qs.Dimensions[dim] < floor {
			return false
		}
	}
	return true
}

// Rank returns the scores sorted by descending composite. Ties break on
// artifact ID so ranking stays deterministic.
func Rank(scores []QualityScore) []QualityScore {
	ranked := make([]QualityScore, len(scores))
	copy(ranked, scores)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Composite != ranked[j].Composite {
			return ranked[i].Composite > ranked[j].Composite
		}
		return ranked[i].ArtifactID < ranked[j].ArtifactID
	})
	return ranked
}

// structuralCodes are the blocking codes that zero the structural dimension.
// Any blocking code outside the explicitly mapped semantic sets lands here,
// which keeps the composite monotone under added blocking findings.
var semanticBlockingCodes = map[core.FindingCode]bool{
	core.CodeMissingLogicTree:  true,
	core.CodeFrequencyMismatch: true,
	core.CodeConcentrationHigh: true,
}

func structuralScore(findings []core.Finding) float64 {
	for _, f := range findings {
		if f.IsBlocking() && !semanticBlockingCodes[f.Code] {
			return 0.0
		}
	}
	return 1.0
}

// absenceScore is 1.0 when the finding set carries none of the given code
func absenceScore(findings []core.Finding, code core.FindingCode) float64 {
	for _, f := range findings {
		if f.Code == code {
			return 0.0
		}
	}
	return 1.0
}

// diversificationScore is the complement of the Herfindahl index over the
// allocation weights: a single-asset book scores 0, an equal-weight book
// of n assets scores 1 - 1/n. An artifact with no top-level weights
// (pure tree-driven allocation) scores neutral.
func diversificationScore(a *strategy.Artifact) float64 {
	if len(a.Weights) == 0 {
		return 0.5
	}
	squares := make([]float64, 0, len(a.Weights))
	for _, w := range a.Weights {
		squares = append(squares, w*w)
	}
	hhi, err := stats.Sum(squares)
	if err != nil {
		return 0.0
	}
	score := 1.0 - hhi
	if score < 0 {
		return 0.0
	}
	return score
}

// riskAlignmentScore penalizes concentration and frequency findings:
// any blocking one zeroes the dimension, an advisory one halves it.
func riskAlignmentScore(findings []core.Finding) float64 {
	score := 1.0
	for _, f := range findings {
		if !semanticBlockingCodes[f.Code] || f.Code == core.CodeMissingLogicTree {
			continue
		}
		if f.IsBlocking() {
			return 0.0
		}
		score = 0.5
	}
	return score
}
