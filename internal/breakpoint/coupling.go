// Package breakpoint decides where to cut each dependency cycle.
//
// Every in-cycle edge gets a coupling strength (call-level references between the two
// projects). The weakest edges of each cycle are the cheapest places to cut, and the
// Ranker orders one cut per cycle into a global list.
package breakpoint

import (
	"context"
	"log/slog"

	"github.com/efebarandurmaz/fracture/internal/cycles"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// CallCounts supplies the number of call-level references from one project to another.
// ok is false when no measurement exists for the pair.
type CallCounts interface {
	CallCount(from, to string) (count int, ok bool)
}

// CallCountMap is an in-memory CallCounts keyed by edge.
type CallCountMap map[depgraph.Edge]int

func (m CallCountMap) CallCount(from, to string) (int, bool) {
	n, ok := m[depgraph.Edge{From: from, To: to}]
	return n, ok
}

// CouplingEdgeScore is the coupling strength of one in-cycle edge.
// Measured is false when the strength defaulted to 0 for lack of data.
type CouplingEdgeScore struct {
	Edge     depgraph.Edge `json:"edge"`
	Strength int           `json:"strength"`
	Measured bool          `json:"measured"`
}

// Analyzer scores in-cycle edges and records the weakest ones on each cycle.
type Analyzer struct {
	counts CallCounts
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer. counts may be nil, in which case every edge scores 0.
func NewAnalyzer(counts CallCounts, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{counts: counts, logger: logger}
}

// ScoreCycle returns a score for every edge whose endpoints are both cycle members,
// in graph edge order.
func (a *Analyzer) ScoreCycle(g *depgraph.DependencyGraph, c *cycles.CycleInfo) []CouplingEdgeScore {
	members := make(map[string]struct{}, len(c.Projects))
	for _, p := range c.Projects {
		members[p] = struct{}{}
	}

	var scores []CouplingEdgeScore
	for _, p := range c.Projects {
		for _, to := range g.Successors(p) {
			if _, ok := members[to]; !ok {
				continue
			}
			scores = append(scores, a.score(c.ID, depgraph.Edge{From: p, To: to}))
		}
	}
	return scores
}

func (a *Analyzer) score(cycleID int, e depgraph.Edge) CouplingEdgeScore {
	if a.counts == nil {
		return CouplingEdgeScore{Edge: e}
	}
	n, ok := a.counts.CallCount(e.From, e.To)
	if !ok {
		a.logger.Debug("no call data for edge, assuming 0",
			"cycle_id", cycleID, "from", e.From, "to", e.To)
		return CouplingEdgeScore{Edge: e}
	}
	if n < 0 {
		a.logger.Warn("negative call count, assuming 0",
			"cycle_id", cycleID, "from", e.From, "to", e.To, "count", n)
		return CouplingEdgeScore{Edge: e}
	}
	return CouplingEdgeScore{Edge: e, Strength: n, Measured: true}
}

// IdentifyWeakEdges returns every edge sharing the minimum strength, in input order,
// together with that minimum. It returns nil, 0 for no scores.
func IdentifyWeakEdges(scores []CouplingEdgeScore) ([]depgraph.Edge, int) {
	if len(scores) == 0 {
		return nil, 0
	}
	lowest := scores[0].Strength
	for _, s := range scores[1:] {
		if s.Strength < lowest {
			lowest = s.Strength
		}
	}
	var weak []depgraph.Edge
	for _, s := range scores {
		if s.Strength == lowest {
			weak = append(weak, s.Edge)
		}
	}
	return weak, lowest
}

// Analyze enriches each cycle in place with its weak edges, their shared minimum
// strength and the number of candidate edges considered.
func (a *Analyzer) Analyze(ctx context.Context, g *depgraph.DependencyGraph, cs []*cycles.CycleInfo) error {
	if g == nil {
		return depgraph.ErrNilGraph
	}

	type result struct {
		weak          []depgraph.Edge
		lowest, count int
	}
	results := make([]result, len(cs))
	for i, c := range cs {
		if err := ctx.Err(); err != nil {
			return err
		}
		scores := a.ScoreCycle(g, c)
		weak, lowest := IdentifyWeakEdges(scores)
		results[i] = result{weak: weak, lowest: lowest, count: len(scores)}
	}

	// Write back only once every cycle was scored, so cancellation leaves no partial state.
	for i, c := range cs {
		c.WeakEdges = results[i].weak
		c.MinCouplingScore = results[i].lowest
		c.CandidateEdges = results[i].count
		a.logger.Debug("weak edges identified",
			"cycle_id", c.ID, "weak", len(c.WeakEdges), "min_score", c.MinCouplingScore)
	}
	return nil
}
