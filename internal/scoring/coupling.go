package scoring

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// CouplingMetric weighs dependents twice as heavily as dependencies: a project many
// others rely on is harder to move than one that merely relies on many.
type CouplingMetric struct {
	Project         string  `json:"project"`
	Incoming        int     `json:"incoming"`
	Outgoing        int     `json:"outgoing"`
	RawScore        int     `json:"raw_score"`
	NormalizedScore float64 `json:"normalized_score"`
	Status          Outcome `json:"outcome"`
}

func (m CouplingMetric) Kind() MetricKind { return KindCoupling }
func (m CouplingMetric) Score() float64   { return m.NormalizedScore }
func (m CouplingMetric) Outcome() Outcome { return m.Status }

// CouplingCalculator normalizes against the most coupled project of the whole graph,
// which scores 100.
type CouplingCalculator struct {
	g      *depgraph.DependencyGraph
	raw    map[string]int
	maxRaw int
}

// NewCouplingCalculator precomputes raw scores for every vertex of g.
func NewCouplingCalculator(g *depgraph.DependencyGraph) (*CouplingCalculator, error) {
	if g == nil {
		return nil, depgraph.ErrNilGraph
	}
	c := &CouplingCalculator{g: g, raw: make(map[string]int, g.VertexCount())}
	for _, v := range g.Vertices() {
		in, out := degrees(g, v.Path)
		raw := in*2 + out
		c.raw[v.Path] = raw
		if raw > c.maxRaw {
			c.maxRaw = raw
		}
	}
	return c, nil
}

// degrees counts edges to and from p, ignoring a self edge.
func degrees(g *depgraph.DependencyGraph, p string) (in, out int) {
	for _, q := range g.Predecessors(p) {
		if q != p {
			in++
		}
	}
	for _, q := range g.Successors(p) {
		if q != p {
			out++
		}
	}
	return in, out
}

func (c *CouplingCalculator) Kind() MetricKind { return KindCoupling }

func (c *CouplingCalculator) Calculate(ctx context.Context, p depgraph.ProjectVertex) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := c.raw[p.Path]
	if !ok {
		return nil, fmt.Errorf("coupling for %s: %w", p.Path, ErrUnknownProject)
	}
	in, out := degrees(c.g, p.Path)

	m := CouplingMetric{
		Project:  p.Path,
		Incoming: in,
		Outgoing: out,
		RawScore: raw,
		Status:   Measured(),
	}
	if c.maxRaw > 0 {
		m.NormalizedScore = clamp(float64(raw) / float64(c.maxRaw) * 100)
	}
	return m, nil
}
