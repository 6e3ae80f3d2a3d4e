package scoring

import (
	"context"
	"log/slog"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// DefaultAPISaturation is the endpoint count at which the ExternalAPI metric reaches 100.
const DefaultAPISaturation = 25

// EndpointSource looks up the number of externally callable endpoints of a project.
type EndpointSource interface {
	EndpointCount(project string) (int, bool)
}

// EndpointMap is an in-memory EndpointSource.
type EndpointMap map[string]int

func (m EndpointMap) EndpointCount(project string) (int, bool) {
	n, ok := m[project]
	return n, ok
}

type ExternalAPIMetric struct {
	Project         string  `json:"project"`
	EndpointCount   int     `json:"endpoint_count"`
	NormalizedScore float64 `json:"normalized_score"`
	Status          Outcome `json:"outcome"`
}

func (m ExternalAPIMetric) Kind() MetricKind { return KindExternalAPI }
func (m ExternalAPIMetric) Score() float64   { return m.NormalizedScore }
func (m ExternalAPIMetric) Outcome() Outcome { return m.Status }

type ExternalAPICalculator struct {
	src        EndpointSource
	saturation int
	logger     *slog.Logger
}

// NewExternalAPICalculator creates a calculator. saturation <= 0 selects
// DefaultAPISaturation; a nil source makes every project fall back.
func NewExternalAPICalculator(src EndpointSource, saturation int, logger *slog.Logger) *ExternalAPICalculator {
	if saturation <= 0 {
		saturation = DefaultAPISaturation
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExternalAPICalculator{src: src, saturation: saturation, logger: logger}
}

func (c *ExternalAPICalculator) Kind() MetricKind { return KindExternalAPI }

func (c *ExternalAPICalculator) Calculate(ctx context.Context, p depgraph.ProjectVertex) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := ExternalAPIMetric{Project: p.Path}

	var (
		n  int
		ok bool
	)
	if c.src != nil {
		n, ok = c.src.EndpointCount(p.Path)
	}
	reason := ""
	switch {
	case !ok:
		reason = "endpoint count unavailable"
	case n < 0:
		reason = "negative endpoint count"
	}
	if reason != "" {
		c.logger.Debug("external api metric fallback", "project", p.Path, "reason", reason)
		m.NormalizedScore = NeutralScore
		m.Status = Fallback(reason)
		return m, nil
	}

	m.EndpointCount = n
	m.NormalizedScore = clamp(float64(n) / float64(c.saturation) * 100)
	m.Status = Measured()
	return m, nil
}
