package graph

import (
	"fmt"
	"strings"
)

// Derived, one-way visualization exports. Arrows are drawn in data-flow
// direction: a derives_from edge renders as source-table -> derived-view.

// ExportDOT renders the graph in GraphViz DOT format. Task nodes are
// drawn as ellipses, datasets as rounded boxes.
func ExportDOT(g *Graph) string {
	var b strings.Builder
	b.WriteString("digraph lineage {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")

	for _, n := range g.Nodes() {
		if n.Kind == NodeTask {
			fmt.Fprintf(&b, "  %s [label=%q, shape=ellipse];\n", safeID(n.Key), n.Key)
		} else {
			fmt.Fprintf(&b, "  %s [label=%q];\n", safeID(n.Key), n.Key)
		}
	}
	for _, e := range g.Edges() {
		src, dst := safeID(e.Source), safeID(e.Target)
		if e.Kind == EdgeDerivesFrom {
			fmt.Fprintf(&b, "  %s -> %s [label=%q];\n", dst, src, string(e.Kind))
		} else {
			fmt.Fprintf(&b, "  %s -> %s [label=%q];\n", src, dst, string(e.Kind))
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// ExportMermaid renders the graph as a Mermaid flowchart. Node labels
// use the short object name; task nodes are annotated.
func ExportMermaid(g *Graph) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, n := range g.Nodes() {
		label := ShortName(n.Key)
		if n.Kind == NodeTask {
			fmt.Fprintf(&b, "  %s[\"%s (task)\"]\n", safeID(n.Key), label)
		} else {
			fmt.Fprintf(&b, "  %s[\"%s\"]\n", safeID(n.Key), label)
		}
	}
	for _, e := range g.Edges() {
		src, dst := safeID(e.Source), safeID(e.Target)
		switch e.Kind {
		case EdgeDerivesFrom:
			fmt.Fprintf(&b, "  %s -->|derives| %s\n", dst, src)
		case EdgeProduces:
			fmt.Fprintf(&b, "  %s -->|produces| %s\n", src, dst)
		case EdgeConsumes:
			fmt.Fprintf(&b, "  %s -->|consumes| %s\n", src, dst)
		}
	}
	return b.String()
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_", ":", "_")

func safeID(name string) string {
	return idReplacer.Replace(name)
}
