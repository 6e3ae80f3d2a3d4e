package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a content hash of the graph's vertices and edges.
// It is independent of insertion order, so the same project set always hashes the same.
func Fingerprint(g *DependencyGraph) string {
	if g == nil {
		return ""
	}

	vertices := make([]string, 0, g.VertexCount())
	for _, v := range g.Vertices() {
		vertices = append(vertices, strings.Join([]string{
			v.Path, v.Name, v.Solution, fmt.Sprint(v.IsFramework),
		}, "\x1f"))
	}
	sort.Strings(vertices)

	edges := make([]string, 0, g.EdgeCount())
	for _, e := range g.edges {
		edges = append(edges, e.From+"\x1f"+e.To)
	}
	sort.Strings(edges)

	d := xxhash.New()
	for _, v := range vertices {
		_, _ = d.WriteString("v|" + v + "\n")
	}
	for _, e := range edges {
		_, _ = d.WriteString("e|" + e + "\n")
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
