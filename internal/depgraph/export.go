package depgraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DOTOptions controls Graphviz rendering.
type DOTOptions struct {
	// Highlight marks edges (typically suggested cut points) in red.
	Highlight []Edge
	// Labels optionally annotates highlighted edges, keyed by edge.
	Labels map[Edge]string
}

// ExportDOT generates a Graphviz DOT representation of the graph.
// Solutions become clusters; cross-solution edges are dashed.
func ExportDOT(g *DependencyGraph, opts DOTOptions) string {
	highlight := make(map[Edge]bool, len(opts.Highlight))
	for _, e := range opts.Highlight {
		highlight[e] = true
	}

	var b strings.Builder
	b.WriteString("digraph dependencies {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\" fontsize=10];\n\n")

	bySolution := groupBySolution(g)
	for _, sol := range g.Solutions() {
		b.WriteString(fmt.Sprintf("  subgraph cluster_%s {\n", sanitizeID(sol)))
		b.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeQuotes(sol)))
		b.WriteString("    style=dashed;\n")
		b.WriteString("    color=\"#58a6ff\";\n")
		for _, v := range bySolution[sol] {
			b.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\" shape=%s style=filled fillcolor=\"%s\"];\n",
				escapeQuotes(v.Path), escapeQuotes(v.Name), vertexShape(v), vertexColor(v)))
		}
		b.WriteString("  }\n\n")
	}

	for _, e := range g.edges {
		style := "solid"
		if g.IsCrossSolution(e) {
			style = "dashed"
		}
		color := "#8b949e"
		attrs := ""
		if highlight[e] {
			color = "#f85149"
			attrs = " penwidth=2"
			if label := opts.Labels[e]; label != "" {
				attrs += fmt.Sprintf(" label=\"%s\"", escapeQuotes(label))
			}
		}
		b.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s color=\"%s\"%s];\n",
			escapeQuotes(e.From), escapeQuotes(e.To), style, color, attrs))
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid generates a Mermaid flowchart of the graph.
func ExportMermaid(g *DependencyGraph, highlight []Edge) string {
	marked := make(map[Edge]bool, len(highlight))
	for _, e := range highlight {
		marked[e] = true
	}

	var b strings.Builder
	b.WriteString("graph LR\n")

	bySolution := groupBySolution(g)
	for _, sol := range g.Solutions() {
		b.WriteString(fmt.Sprintf("  subgraph %s\n", sanitizeID(sol)))
		for _, v := range bySolution[sol] {
			b.WriteString(fmt.Sprintf("    %s%s\n", sanitizeID(v.Path), mermaidShape(v)))
		}
		b.WriteString("  end\n")
	}

	var redLinks []int
	for i, e := range g.edges {
		arrow := "-->"
		if g.IsCrossSolution(e) {
			arrow = "-.->"
		}
		if marked[e] {
			redLinks = append(redLinks, i)
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", sanitizeID(e.From), arrow, sanitizeID(e.To)))
	}
	for _, i := range redLinks {
		b.WriteString(fmt.Sprintf("  linkStyle %d stroke:#f85149,stroke-width:3px\n", i))
	}

	return b.String()
}

type jsonEdge struct {
	Edge
	CrossSolution bool `json:"cross_solution"`
}

type jsonGraph struct {
	Fingerprint string          `json:"fingerprint"`
	Vertices    []ProjectVertex `json:"vertices"`
	Edges       []jsonEdge      `json:"edges"`
}

// ExportJSON serializes the graph to JSON, including the derived cross-solution flag.
func ExportJSON(g *DependencyGraph) ([]byte, error) {
	out := jsonGraph{
		Fingerprint: Fingerprint(g),
		Vertices:    g.Vertices(),
		Edges:       make([]jsonEdge, 0, len(g.edges)),
	}
	for _, e := range g.edges {
		out.Edges = append(out.Edges, jsonEdge{Edge: e, CrossSolution: g.IsCrossSolution(e)})
	}
	return json.MarshalIndent(out, "", "  ")
}

// FormatStats returns a human-readable summary of the graph.
func FormatStats(g *DependencyGraph) string {
	var b strings.Builder
	b.WriteString("Dependency Graph Statistics\n")
	b.WriteString("==========================\n\n")
	b.WriteString(fmt.Sprintf("Projects:        %d\n", g.VertexCount()))
	b.WriteString(fmt.Sprintf("References:      %d\n", g.EdgeCount()))
	b.WriteString(fmt.Sprintf("Cross-solution:  %d\n", len(g.CrossSolutionEdges())))

	var maxOut, maxIn int
	var hotspot string
	for _, id := range g.order {
		if d := g.OutDegree(id); d > maxOut {
			maxOut = d
		}
		if d := g.InDegree(id); d > maxIn {
			maxIn = d
			hotspot = g.vertices[id].Name
		}
	}
	b.WriteString(fmt.Sprintf("Max Fan-Out:     %d\n", maxOut))
	b.WriteString(fmt.Sprintf("Max Fan-In:      %d (%s)\n", maxIn, hotspot))

	solutions := g.Solutions()
	if len(solutions) > 0 {
		counts := make(map[string]int)
		for _, v := range g.vertices {
			counts[v.Solution]++
		}
		b.WriteString("\nSolutions:\n")
		sorted := append([]string(nil), solutions...)
		sort.Strings(sorted)
		for _, s := range sorted {
			b.WriteString(fmt.Sprintf("  %s: %d projects\n", s, counts[s]))
		}
	}

	return b.String()
}

func groupBySolution(g *DependencyGraph) map[string][]ProjectVertex {
	out := make(map[string][]ProjectVertex)
	for _, id := range g.order {
		v := g.vertices[id]
		out[v.Solution] = append(out[v.Solution], v)
	}
	return out
}

func sanitizeID(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

func vertexShape(v ProjectVertex) string {
	if v.IsFramework {
		return "ellipse"
	}
	return "box"
}

func vertexColor(v ProjectVertex) string {
	if v.IsFramework {
		return "#30363d"
	}
	return "#1f6feb"
}

func mermaidShape(v ProjectVertex) string {
	if v.IsFramework {
		return fmt.Sprintf("([\"%s\"])", v.Name)
	}
	return fmt.Sprintf("[\"%s\"]", v.Name)
}
