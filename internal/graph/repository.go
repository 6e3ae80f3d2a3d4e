// Package graph persists analyzed dependency graphs so they can be queried later.
package graph

import (
	"context"
	"errors"

	"github.com/efebarandurmaz/fracture/internal/breakpoint"
	"github.com/efebarandurmaz/fracture/internal/cycles"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// ErrNotFound is returned when no graph is stored under a fingerprint.
var ErrNotFound = errors.New("graph not found")

// Snapshot is one analysis result keyed by its graph fingerprint.
type Snapshot struct {
	Fingerprint string
	Graph       *depgraph.DependencyGraph
	Cycles      []*cycles.CycleInfo
	Suggestions []breakpoint.Suggestion
}

// Repository provides graph storage for analysis snapshots.
type Repository interface {
	// StoreSnapshot persists projects, references, cycles and suggested cuts.
	StoreSnapshot(ctx context.Context, snap Snapshot) error
	// LoadGraph rebuilds the dependency graph stored under fingerprint.
	LoadGraph(ctx context.Context, fingerprint string) (*depgraph.DependencyGraph, error)
	// QueryDependents returns the projects that reference the given project, sorted.
	QueryDependents(ctx context.Context, fingerprint, project string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// ToSolutions flattens a graph back into builder input, one solution per originating
// solution in first-seen order. Rebuilding the result yields an equivalent graph.
func ToSolutions(g *depgraph.DependencyGraph) []depgraph.Solution {
	if g == nil {
		return nil
	}
	index := make(map[string]int)
	var sols []depgraph.Solution
	for _, v := range g.Vertices() {
		i, ok := index[v.Solution]
		if !ok {
			i = len(sols)
			index[v.Solution] = i
			sols = append(sols, depgraph.Solution{ID: v.Solution})
		}
		sols[i].Projects = append(sols[i].Projects, depgraph.ProjectRecord{
			Path:        v.Path,
			Name:        v.Name,
			IsFramework: v.IsFramework,
			References:  g.Successors(v.Path),
		})
	}
	return sols
}
