package depgraph

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidIdentity is returned when a project path cannot serve as a vertex identity.
	ErrInvalidIdentity = errors.New("invalid project identity")
	// ErrNilGraph is returned by stages handed a nil graph.
	ErrNilGraph = errors.New("dependency graph is nil")
)

// ProjectVertex is a single project in the dependency graph.
// Identity is the normalized absolute path to the project's build file.
type ProjectVertex struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Solution    string `json:"solution"`
	IsFramework bool   `json:"is_framework,omitempty"` // set by an external filter
}

// ID returns the vertex identity.
func (v ProjectVertex) ID() string { return v.Path }

// Edge is a directed dependency: From depends on To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the edge as "from -> to".
func (e Edge) String() string { return e.From + " -> " + e.To }

// IsSelfLoop reports whether the edge points back at its source.
func (e Edge) IsSelfLoop() bool { return e.From == e.To }

// Less orders edges lexicographically by (From, To).
func (e Edge) Less(o Edge) bool {
	if e.From != o.From {
		return e.From < o.From
	}
	return e.To < o.To
}

// DependencyGraph is the unified project graph. Vertices live in an arena keyed by
// identity and edges are stored as key pairs, both in insertion order.
// It is built once by the Builder and read-only afterwards.
type DependencyGraph struct {
	vertices map[string]ProjectVertex
	index    map[string]int
	order    []string

	edges   []Edge
	edgeSet map[Edge]struct{}
	out     map[string][]string
	in      map[string][]string
}

func newGraph() *DependencyGraph {
	return &DependencyGraph{
		vertices: make(map[string]ProjectVertex),
		index:    make(map[string]int),
		edgeSet:  make(map[Edge]struct{}),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
	}
}

// addVertex inserts v unless its identity already exists. The stored vertex is returned
// along with whether an insert happened.
func (g *DependencyGraph) addVertex(v ProjectVertex) (ProjectVertex, bool) {
	if existing, ok := g.vertices[v.Path]; ok {
		return existing, false
	}
	g.vertices[v.Path] = v
	g.index[v.Path] = len(g.order)
	g.order = append(g.order, v.Path)
	return v, true
}

// addEdge inserts e if both endpoints exist and the edge is new.
func (g *DependencyGraph) addEdge(e Edge) bool {
	if _, ok := g.vertices[e.From]; !ok {
		return false
	}
	if _, ok := g.vertices[e.To]; !ok {
		return false
	}
	if _, dup := g.edgeSet[e]; dup {
		return false
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], e.To)
	g.in[e.To] = append(g.in[e.To], e.From)
	return true
}

// Vertex looks up a vertex by identity.
func (g *DependencyGraph) Vertex(id string) (ProjectVertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// Index returns the insertion position of a vertex, or -1.
func (g *DependencyGraph) Index(id string) int {
	i, ok := g.index[id]
	if !ok {
		return -1
	}
	return i
}

// Vertices returns all vertices in insertion order.
func (g *DependencyGraph) Vertices() []ProjectVertex {
	out := make([]ProjectVertex, len(g.order))
	for i, id := range g.order {
		out[i] = g.vertices[id]
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *DependencyGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

func (g *DependencyGraph) VertexCount() int { return len(g.order) }
func (g *DependencyGraph) EdgeCount() int   { return len(g.edges) }

// Successors returns the projects id depends on, in edge insertion order.
func (g *DependencyGraph) Successors(id string) []string {
	return append([]string(nil), g.out[id]...)
}

// Predecessors returns the projects depending on id, in edge insertion order.
func (g *DependencyGraph) Predecessors(id string) []string {
	return append([]string(nil), g.in[id]...)
}

func (g *DependencyGraph) OutDegree(id string) int { return len(g.out[id]) }
func (g *DependencyGraph) InDegree(id string) int  { return len(g.in[id]) }

// HasEdge reports whether from depends on to.
func (g *DependencyGraph) HasEdge(from, to string) bool {
	_, ok := g.edgeSet[Edge{From: from, To: to}]
	return ok
}

// IsCrossSolution reports whether the endpoints of e were tagged with different
// solutions. It is derived from the vertices on every call.
func (g *DependencyGraph) IsCrossSolution(e Edge) bool {
	from, ok := g.vertices[e.From]
	if !ok {
		return false
	}
	to, ok := g.vertices[e.To]
	if !ok {
		return false
	}
	return from.Solution != to.Solution
}

// CrossSolutionEdges returns every edge spanning two solutions.
func (g *DependencyGraph) CrossSolutionEdges() []Edge {
	var out []Edge
	for _, e := range g.edges {
		if g.IsCrossSolution(e) {
			out = append(out, e)
		}
	}
	return out
}

// Solutions returns the distinct solution tags in first-seen order.
func (g *DependencyGraph) Solutions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range g.order {
		s := g.vertices[id].Solution
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// NormalizePath turns a project file path into a vertex identity: separators become
// forward slashes, relative paths are made absolute and the result is cleaned.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidIdentity)
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if !IsAbs(p) {
		abs, err := filepath.Abs(filepath.FromSlash(p))
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidIdentity, p, err)
		}
		p = filepath.ToSlash(abs)
	}
	cleaned := path.Clean(p)
	if cleaned == "/" || cleaned == "." {
		return "", fmt.Errorf("%w: %q names no project file", ErrInvalidIdentity, p)
	}
	return cleaned, nil
}

// IsAbs reports whether a slash-separated path is absolute. POSIX paths and Windows
// drive paths such as C:/src both qualify.
func IsAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
