package scoring

import (
	"fmt"
	"math"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

const weightTolerance = 1e-6

// Weights sets how much each metric contributes to the final score.
type Weights struct {
	Coupling    float64 `mapstructure:"coupling" json:"coupling"`
	Complexity  float64 `mapstructure:"complexity" json:"complexity"`
	TechDebt    float64 `mapstructure:"tech_debt" json:"tech_debt"`
	ExternalAPI float64 `mapstructure:"external_api" json:"external_api"`
}

// DefaultWeights favors structural coupling, then code complexity.
func DefaultWeights() Weights {
	return Weights{Coupling: 0.40, Complexity: 0.30, TechDebt: 0.20, ExternalAPI: 0.10}
}

func (w Weights) Sum() float64 {
	return w.Coupling + w.Complexity + w.TechDebt + w.ExternalAPI
}

func (w Weights) byKind() map[MetricKind]float64 {
	return map[MetricKind]float64{
		KindCoupling:    w.Coupling,
		KindComplexity:  w.Complexity,
		KindTechDebt:    w.TechDebt,
		KindExternalAPI: w.ExternalAPI,
	}
}

func (w Weights) checkNonNegative() error {
	for _, k := range Kinds {
		v := w.byKind()[k]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s weight %v: %w", k, v, ErrNegativeWeight)
		}
	}
	return nil
}

// Validate checks that every weight is non-negative and that they sum to 1.0.
func (w Weights) Validate() error {
	if err := w.checkNonNegative(); err != nil {
		return err
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("sum is %.6f: %w", sum, ErrWeightSum)
	}
	return nil
}

// Category buckets a final score into three extraction difficulty tiers.
type Category string

const (
	CategoryEasy   Category = "Easy"
	CategoryMedium Category = "Medium"
	CategoryHard   Category = "Hard"
)

func CategoryOf(score float64) Category {
	switch {
	case score <= 33:
		return CategoryEasy
	case score <= 66:
		return CategoryMedium
	default:
		return CategoryHard
	}
}

// ExtractionScore is the combined difficulty of extracting one project.
// Coupling is nil when no coupling metric could be computed.
type ExtractionScore struct {
	Project     depgraph.ProjectVertex `json:"project"`
	Coupling    *CouplingMetric        `json:"coupling,omitempty"`
	Complexity  ComplexityMetric       `json:"complexity"`
	TechDebt    TechDebtMetric         `json:"tech_debt"`
	ExternalAPI ExternalAPIMetric      `json:"external_api"`
	FinalScore  float64                `json:"final_score"`
}

func (s ExtractionScore) Category() Category { return CategoryOf(s.FinalScore) }

// Fallbacks lists the metric kinds that used a neutral fallback instead of data.
// An absent coupling metric is reported as a fallback too.
func (s ExtractionScore) Fallbacks() []MetricKind {
	var kinds []MetricKind
	if s.Coupling == nil || s.Coupling.Status.IsFallback() {
		kinds = append(kinds, KindCoupling)
	}
	for _, m := range []Metric{s.Complexity, s.TechDebt, s.ExternalAPI} {
		if m.Outcome().IsFallback() {
			kinds = append(kinds, m.Kind())
		}
	}
	return kinds
}

// Combine computes the weighted sum of the present metrics. An absent coupling metric
// contributes nothing and its weight is not redistributed, so the score is a partial
// sum. The weight sum is checked upstream by Weights.Validate; Combine only rejects
// negative weights.
func Combine(p depgraph.ProjectVertex, coupling *CouplingMetric, complexity ComplexityMetric,
	techDebt TechDebtMetric, externalAPI ExternalAPIMetric, w Weights) (ExtractionScore, error) {
	if err := w.checkNonNegative(); err != nil {
		return ExtractionScore{}, err
	}

	total := w.Complexity*complexity.Score() +
		w.TechDebt*techDebt.Score() +
		w.ExternalAPI*externalAPI.Score()
	if coupling != nil {
		total += w.Coupling * coupling.Score()
	}

	return ExtractionScore{
		Project:     p,
		Coupling:    coupling,
		Complexity:  complexity,
		TechDebt:    techDebt,
		ExternalAPI: externalAPI,
		FinalScore:  clamp(total),
	}, nil
}
