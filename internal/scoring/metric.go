// Package scoring rates how hard each project would be to extract from the solution.
//
// Four calculators each produce a 0-100 metric from an independent data source. When
// the data is missing the calculator returns a neutral fallback instead of an error, so
// a gap in one source never invents a misleading score. The combiner folds the metrics
// into one weighted ExtractionScore.
package scoring

import (
	"context"
	"errors"
	"math"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

var (
	ErrUnknownProject = errors.New("project is not part of the graph")
	ErrNegativeWeight = errors.New("scoring weight must be a non-negative number")
	ErrWeightSum      = errors.New("scoring weights must sum to 1.0")
)

// NeutralScore is the fallback used when a metric's data is unavailable.
const NeutralScore = 50.0

// MetricKind identifies one of the four metrics.
type MetricKind string

const (
	KindCoupling    MetricKind = "coupling"
	KindComplexity  MetricKind = "complexity"
	KindTechDebt    MetricKind = "tech_debt"
	KindExternalAPI MetricKind = "external_api"
)

// Kinds lists every metric kind in combination order.
var Kinds = []MetricKind{KindCoupling, KindComplexity, KindTechDebt, KindExternalAPI}

// Outcome records whether a metric was measured or fell back to a neutral value.
type Outcome struct {
	fallback bool
	reason   string
}

func Measured() Outcome { return Outcome{} }

func Fallback(reason string) Outcome { return Outcome{fallback: true, reason: reason} }

func (o Outcome) IsFallback() bool { return o.fallback }

// Reason is empty for measured outcomes.
func (o Outcome) Reason() string { return o.reason }

func (o Outcome) String() string {
	if !o.fallback {
		return "measured"
	}
	return "fallback: " + o.reason
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Metric is one normalized measurement of one project.
type Metric interface {
	Kind() MetricKind
	Score() float64
	Outcome() Outcome
}

// Calculator produces one kind of metric for a project.
type Calculator interface {
	Kind() MetricKind
	Calculate(ctx context.Context, p depgraph.ProjectVertex) (Metric, error)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
