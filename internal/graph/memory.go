package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// MemoryRepository keeps snapshots in process. It backs tests and runs without a
// graph database.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snapshots: make(map[string]Snapshot)}
}

func (r *MemoryRepository) StoreSnapshot(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Graph == nil {
		return depgraph.ErrNilGraph
	}
	if snap.Fingerprint == "" {
		snap.Fingerprint = depgraph.Fingerprint(snap.Graph)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snap.Fingerprint] = snap
	return nil
}

func (r *MemoryRepository) LoadGraph(ctx context.Context, fingerprint string) (*depgraph.DependencyGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, ok := r.Snapshot(fingerprint)
	if !ok {
		return nil, fmt.Errorf("fingerprint %s: %w", fingerprint, ErrNotFound)
	}
	return snap.Graph, nil
}

// Snapshot returns the full stored snapshot, including cycles and suggestions.
func (r *MemoryRepository) Snapshot(fingerprint string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[fingerprint]
	return snap, ok
}

func (r *MemoryRepository) QueryDependents(ctx context.Context, fingerprint, project string) ([]string, error) {
	g, err := r.LoadGraph(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, p := range g.Predecessors(project) {
		if p != project {
			deps = append(deps, p)
		}
	}
	sort.Strings(deps)
	return deps, nil
}

func (r *MemoryRepository) Close(context.Context) error { return nil }

var _ Repository = (*MemoryRepository)(nil)
