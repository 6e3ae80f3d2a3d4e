// Package cycles finds circular project dependencies and summarizes them.
package cycles

import (
	"context"
	"log/slog"
	"sort"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// ErrNilGraph is returned when Detect is called without a graph.
var ErrNilGraph = depgraph.ErrNilGraph

// CycleInfo describes one non-trivial strongly connected component.
// The detector fills ID, Projects and Size; the coupling stage fills the rest.
type CycleInfo struct {
	ID       int      `json:"id"`
	Projects []string `json:"projects"`
	Size     int      `json:"size"`

	WeakEdges        []depgraph.Edge `json:"weak_edges,omitempty"`
	MinCouplingScore int             `json:"min_coupling_score"`
	CandidateEdges   int             `json:"candidate_edges"`
}

// Contains reports whether the project is a member of the cycle.
func (c *CycleInfo) Contains(id string) bool {
	for _, p := range c.Projects {
		if p == id {
			return true
		}
	}
	return false
}

// IsSelfLoop reports whether the cycle is a single project depending on itself.
func (c *CycleInfo) IsSelfLoop() bool { return c.Size == 1 }

// Detector runs Tarjan's strongly-connected-component algorithm.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil logger falls back to slog.Default().
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// frame is one level of the explicit DFS stack: a vertex and the position of the
// next successor to explore.
type frame struct {
	v    int
	next int
}

// Detect returns one CycleInfo per component with two or more members, or one member
// and a self edge. IDs start at 1 and follow the order components are popped;
// members are listed in graph insertion order. Both are stable for identical input.
func (d *Detector) Detect(ctx context.Context, g *depgraph.DependencyGraph) ([]*CycleInfo, error) {
	if g == nil {
		return nil, ErrNilGraph
	}

	vertices := g.Vertices()
	n := len(vertices)
	adj := make([][]int, n)
	for i, v := range vertices {
		for _, succ := range g.Successors(v.Path) {
			adj[i] = append(adj[i], g.Index(succ))
		}
	}

	const unvisited = -1
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		counter int
		stack   []int
		calls   []frame
		cycles  []*CycleInfo
	)

	for root := 0; root < n; root++ {
		if index[root] != unvisited {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		index[root], low[root] = counter, counter
		counter++
		stack = append(stack, root)
		onStack[root] = true
		calls = append(calls, frame{v: root})

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			v := top.v

			if top.next < len(adj[v]) {
				w := adj[v][top.next]
				top.next++
				if index[w] == unvisited {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					index[w], low[w] = counter, counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					calls = append(calls, frame{v: w})
				} else if onStack[w] && index[w] < low[v] {
					low[v] = index[w]
				}
				continue
			}

			// All successors explored: v is finished.
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].v
				if low[v] < low[parent] {
					low[parent] = low[v]
				}
			}
			if low[v] != index[v] {
				continue
			}

			var members []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members = append(members, w)
				if w == v {
					break
				}
			}
			if len(members) == 1 && !g.HasEdge(vertices[v].Path, vertices[v].Path) {
				continue
			}

			sort.Ints(members)
			info := &CycleInfo{
				ID:       len(cycles) + 1,
				Projects: make([]string, len(members)),
				Size:     len(members),
			}
			for i, m := range members {
				info.Projects[i] = vertices[m].Path
			}
			cycles = append(cycles, info)
			d.logger.Debug("cycle detected", "cycle_id", info.ID, "size", info.Size)
		}
	}

	d.logger.Info("cycle detection complete", "vertices", n, "cycles", len(cycles))
	return cycles, nil
}
