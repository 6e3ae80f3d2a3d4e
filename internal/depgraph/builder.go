package depgraph

import (
	"context"
	"fmt"
	"log/slog"
)

// Solution is one input dataset: an aggregate of projects loaded together.
type Solution struct {
	ID       string          `json:"id" yaml:"id"`
	Projects []ProjectRecord `json:"projects" yaml:"projects"`
}

// ProjectRecord is a resolved project and the project files it references.
type ProjectRecord struct {
	Path        string   `json:"path" yaml:"path"`
	Name        string   `json:"name" yaml:"name"`
	IsFramework bool     `json:"is_framework,omitempty" yaml:"is_framework,omitempty"`
	References  []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// ProvenanceNote records a project seen in more than one solution.
type ProvenanceNote struct {
	Path         string `json:"path"`
	KeptSolution string `json:"kept_solution"`
	SeenIn       string `json:"seen_in"`
}

// DanglingReference records a reference whose endpoint is not a known project.
type DanglingReference struct {
	Solution string `json:"solution"`
	From     string `json:"from"`
	To       string `json:"to"`
	Reason   string `json:"reason"`
}

// BuildReport lists everything the builder merged or dropped.
type BuildReport struct {
	Solutions          int                 `json:"solutions"`
	ProjectRecords     int                 `json:"project_records"`
	MergedProjects     int                 `json:"merged_projects"`
	DuplicateEdges     int                 `json:"duplicate_edges"`
	ProvenanceNotes    []ProvenanceNote    `json:"provenance_notes,omitempty"`
	DanglingReferences []DanglingReference `json:"dangling_references,omitempty"`
}

// Builder merges solution datasets into one DependencyGraph.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Builder. A nil logger falls back to slog.Default().
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build merges the solutions. Inconsistent input degrades to "omit and log";
// only an empty project identity or cancellation returns an error.
func (b *Builder) Build(ctx context.Context, solutions []Solution) (*DependencyGraph, *BuildReport, error) {
	g := newGraph()
	report := &BuildReport{Solutions: len(solutions)}

	// 1. Vertices, first-seen solution wins
	for _, sol := range solutions {
		for _, p := range sol.Projects {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			report.ProjectRecords++

			id, err := NormalizePath(p.Path)
			if err != nil {
				return nil, nil, fmt.Errorf("solution %q: %w", sol.ID, err)
			}
			name := p.Name
			if name == "" {
				name = displayName(id)
			}
			stored, inserted := g.addVertex(ProjectVertex{
				Path:        id,
				Name:        name,
				Solution:    sol.ID,
				IsFramework: p.IsFramework,
			})
			if inserted {
				continue
			}
			report.MergedProjects++
			if stored.Solution != sol.ID {
				note := ProvenanceNote{Path: id, KeptSolution: stored.Solution, SeenIn: sol.ID}
				report.ProvenanceNotes = append(report.ProvenanceNotes, note)
				b.logger.Info("project shared between solutions",
					"project", id, "kept_solution", stored.Solution, "seen_in", sol.ID)
			}
		}
	}

	// 2. Edges between known vertices only
	for _, sol := range solutions {
		for _, p := range sol.Projects {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			from, _ := NormalizePath(p.Path)
			for _, ref := range p.References {
				to, err := NormalizePath(ref)
				if err != nil {
					b.dangling(report, sol.ID, from, ref, "malformed reference path")
					continue
				}
				if _, ok := g.Vertex(to); !ok {
					b.dangling(report, sol.ID, from, to, "referenced project not loaded")
					continue
				}
				if !g.addEdge(Edge{From: from, To: to}) {
					report.DuplicateEdges++
				}
			}
		}
	}

	b.logger.Debug("dependency graph built",
		"solutions", report.Solutions,
		"vertices", g.VertexCount(),
		"edges", g.EdgeCount(),
		"merged", report.MergedProjects,
		"dangling", len(report.DanglingReferences))

	return g, report, nil
}

func (b *Builder) dangling(report *BuildReport, solution, from, to, reason string) {
	report.DanglingReferences = append(report.DanglingReferences, DanglingReference{
		Solution: solution,
		From:     from,
		To:       to,
		Reason:   reason,
	})
	b.logger.Warn("skipping dangling reference",
		"solution", solution, "from", from, "to", to, "reason", reason)
}

// displayName derives a project name from its build file, e.g. /src/Api/Api.csproj -> Api.
func displayName(id string) string {
	base := id
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '/' {
			base = id[i+1:]
			break
		}
	}
	for i := len(base) - 1; i > 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
