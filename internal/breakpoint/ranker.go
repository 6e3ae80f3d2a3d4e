package breakpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/efebarandurmaz/fracture/internal/cycles"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// Suggestion proposes one edge to cut to break one cycle.
type Suggestion struct {
	Rank           int                    `json:"rank"`
	CycleID        int                    `json:"cycle_id"`
	Source         depgraph.ProjectVertex `json:"source"`
	Target         depgraph.ProjectVertex `json:"target"`
	CouplingScore  int                    `json:"coupling_score"`
	CycleSize      int                    `json:"cycle_size"`
	CandidateEdges int                    `json:"candidate_edges"`
	TiedEdges      int                    `json:"tied_edges"`
	CrossSolution  bool                   `json:"cross_solution"`
	Rationale      string                 `json:"rationale"`
}

// Edge returns the suggested cut as a graph edge.
func (s Suggestion) Edge() depgraph.Edge {
	return depgraph.Edge{From: s.Source.Path, To: s.Target.Path}
}

// Ranker turns per-cycle weak edges into one globally ranked list.
type Ranker struct {
	logger *slog.Logger
}

// NewRanker creates a Ranker. A nil logger falls back to slog.Default().
func NewRanker(logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{logger: logger}
}

// Rank emits one suggestion per cycle that has weak edges. Within a cycle, ties are
// broken by (source path, target path). Across cycles the order is coupling score,
// then cycle size, then edge identity, all ascending; rank 1 is the easiest cut.
func (r *Ranker) Rank(ctx context.Context, g *depgraph.DependencyGraph, cs []*cycles.CycleInfo) ([]Suggestion, error) {
	if g == nil {
		return nil, depgraph.ErrNilGraph
	}

	suggestions := make([]Suggestion, 0, len(cs))
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(c.WeakEdges) == 0 {
			r.logger.Debug("cycle has no weak edges, no suggestion", "cycle_id", c.ID)
			continue
		}

		chosen := c.WeakEdges[0]
		for _, e := range c.WeakEdges[1:] {
			if e.Less(chosen) {
				chosen = e
			}
		}

		source, _ := g.Vertex(chosen.From)
		target, _ := g.Vertex(chosen.To)
		suggestions = append(suggestions, Suggestion{
			CycleID:        c.ID,
			Source:         source,
			Target:         target,
			CouplingScore:  c.MinCouplingScore,
			CycleSize:      c.Size,
			CandidateEdges: c.CandidateEdges,
			TiedEdges:      len(c.WeakEdges),
			CrossSolution:  g.IsCrossSolution(chosen),
			Rationale:      rationale(source, target, c),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.CouplingScore != b.CouplingScore {
			return a.CouplingScore < b.CouplingScore
		}
		if a.CycleSize != b.CycleSize {
			return a.CycleSize < b.CycleSize
		}
		return a.Edge().Less(b.Edge())
	})
	for i := range suggestions {
		suggestions[i].Rank = i + 1
	}

	r.logger.Info("cycle-breaking suggestions ranked", "suggestions", len(suggestions))
	return suggestions, nil
}

// Top returns the first n suggestions without re-ranking. n <= 0 returns all of them.
func Top(suggestions []Suggestion, n int) []Suggestion {
	if n <= 0 || n >= len(suggestions) {
		return suggestions
	}
	return suggestions[:n]
}

func rationale(source, target depgraph.ProjectVertex, c *cycles.CycleInfo) string {
	if c.Size == 1 {
		return fmt.Sprintf("Remove the self-reference of %s (coupling score %d).", source.Name, c.MinCouplingScore)
	}
	msg := fmt.Sprintf("Cutting %s -> %s breaks a %d-project cycle; coupling score %d is the weakest of %d candidate edges",
		source.Name, target.Name, c.Size, c.MinCouplingScore, c.CandidateEdges)
	if len(c.WeakEdges) > 1 {
		msg += fmt.Sprintf(" (%d edges tied, chosen by path order)", len(c.WeakEdges))
	}
	return msg + "."
}
