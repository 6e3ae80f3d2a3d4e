package scoring

import (
	"context"
	"log/slog"
	"math"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// ComplexityData is the per-project output of the code analysis collaborator.
type ComplexityData struct {
	MethodCount       int     `yaml:"method_count" json:"method_count"`
	AverageComplexity float64 `yaml:"average_complexity" json:"average_complexity"`
}

// ComplexitySource looks up complexity data by project path.
type ComplexitySource interface {
	Complexity(project string) (ComplexityData, bool)
}

// ComplexityMap is an in-memory ComplexitySource.
type ComplexityMap map[string]ComplexityData

func (m ComplexityMap) Complexity(project string) (ComplexityData, bool) {
	d, ok := m[project]
	return d, ok
}

type ComplexityMetric struct {
	Project           string  `json:"project"`
	MethodCount       int     `json:"method_count"`
	AverageComplexity float64 `json:"average_complexity"`
	NormalizedScore   float64 `json:"normalized_score"`
	Status            Outcome `json:"outcome"`
}

func (m ComplexityMetric) Kind() MetricKind { return KindComplexity }
func (m ComplexityMetric) Score() float64   { return m.NormalizedScore }
func (m ComplexityMetric) Outcome() Outcome { return m.Status }

type ComplexityCalculator struct {
	src    ComplexitySource
	logger *slog.Logger
}

// NewComplexityCalculator creates a calculator. A nil source makes every project fall back.
func NewComplexityCalculator(src ComplexitySource, logger *slog.Logger) *ComplexityCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplexityCalculator{src: src, logger: logger}
}

func (c *ComplexityCalculator) Kind() MetricKind { return KindComplexity }

func (c *ComplexityCalculator) Calculate(ctx context.Context, p depgraph.ProjectVertex) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := ComplexityMetric{Project: p.Path}

	var (
		data ComplexityData
		ok   bool
	)
	if c.src != nil {
		data, ok = c.src.Complexity(p.Path)
	}
	switch {
	case !ok:
		return c.fallback(m, "complexity data unavailable"), nil
	case math.IsNaN(data.AverageComplexity) || math.IsInf(data.AverageComplexity, 0):
		return c.fallback(m, "average complexity is not a finite number"), nil
	case data.AverageComplexity < 0 || data.MethodCount < 0:
		return c.fallback(m, "negative complexity data"), nil
	}

	m.MethodCount = data.MethodCount
	m.AverageComplexity = data.AverageComplexity
	m.Status = Measured()
	// A project without methods has nothing to untangle.
	if data.MethodCount > 0 {
		m.NormalizedScore = ComplexityBand(data.AverageComplexity)
	}
	return m, nil
}

func (c *ComplexityCalculator) fallback(m ComplexityMetric, reason string) ComplexityMetric {
	c.logger.Debug("complexity metric fallback", "project", m.Project, "reason", reason)
	m.NormalizedScore = NeutralScore
	m.Status = Fallback(reason)
	return m
}

// ComplexityBand maps an average cyclomatic complexity onto 0-100 with continuous
// piecewise linear bands: up to 7 is low (0-33), 7-15 moderate (33-66), 15-25 high
// (66-100), and anything above 25 saturates.
func ComplexityBand(avg float64) float64 {
	switch {
	case avg <= 0:
		return 0
	case avg <= 7:
		return avg / 7 * 33
	case avg <= 15:
		return 33 + (avg-7)/8*33
	case avg <= 25:
		return 66 + (avg-15)/10*34
	default:
		return 100
	}
}
