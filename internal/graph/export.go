package graph

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ─── Export ───

// ExportJSON returns the graph as pretty-printed JSON.
func (g *Graph) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// ExportJSON returns the subgraph as pretty-printed JSON.
func (s Subgraph) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ExportDOT returns nodes and edges in Graphviz DOT format, laid out radially
// around the root by twopi.
func ExportDOT(kind Kind, nodes []Node, edges []Edge) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph trustmap_%s {\n", kind)
	b.WriteString("  layout=twopi;\n")
	b.WriteString("  node [shape=circle, style=filled, fontsize=10];\n\n")

	for _, n := range nodes {
		attrs := fmt.Sprintf("label=%q, fillcolor=%q", n.Identity.Label(), dotColor(n.Role))
		if n.IsRoot {
			attrs += ", root=true, penwidth=3"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", n.Key, attrs)
	}

	b.WriteString("\n")
	for _, e := range edges {
		var attrs []string
		if e.Sentiment != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", string(e.Sentiment)))
		}
		if e.Magnitude > 0 {
			attrs = append(attrs, fmt.Sprintf("label=\"%.4g\"", e.Magnitude))
		}
		if e.IsReciprocal {
			attrs = append(attrs, "style=bold")
		}
		if len(attrs) > 0 {
			fmt.Fprintf(&b, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
		} else {
			fmt.Fprintf(&b, "  %q -> %q;\n", e.Source, e.Target)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// ExportDOT returns the graph in Graphviz DOT format.
func (g *Graph) ExportDOT() string {
	return ExportDOT(g.Kind, g.Nodes, g.Edges)
}

func dotColor(r Role) string {
	switch r {
	case RoleRoot:
		return "#2DB682"
	case RoleGiven:
		return "#0171E3"
	case RoleReceived:
		return "#E07C3A"
	case RoleBoth:
		return "#9B59B6"
	}
	return "#cccccc"
}

// ─── Terminal view ───

// RenderRings produces a terminal tree of the root and its nodes grouped by ring.
func RenderRings(kind Kind, nodes []Node, edges []Edge, brandFn, subtleFn, infoFn func(string) string) string {
	var b strings.Builder

	byLevel := make(map[int][]Node)
	var levels []int
	var root *Node
	for i, n := range nodes {
		if n.IsRoot {
			root = &nodes[i]
			continue
		}
		if _, ok := byLevel[n.Level]; !ok {
			levels = append(levels, n.Level)
		}
		byLevel[n.Level] = append(byLevel[n.Level], n)
	}
	sortInts(levels)

	out := make(map[string]int)
	in := make(map[string]int)
	for _, e := range edges {
		out[e.Source]++
		in[e.Target]++
	}

	if root != nil {
		b.WriteString(fmt.Sprintf("  ● %s %s\n", brandFn(root.Identity.Label()), subtleFn(fmt.Sprintf("(%s, score %d)", kind, root.Identity.Score))))
	}
	for li, lvl := range levels {
		ring := byLevel[lvl]
		last := li == len(levels)-1
		branch, pipe := "├── ", "│   "
		if last {
			branch, pipe = "└── ", "    "
		}
		b.WriteString(fmt.Sprintf("  %s%s\n", branch, infoFn(fmt.Sprintf("ring %d · %d identities", lvl, len(ring)))))
		for i, n := range ring {
			prefix := "├─ "
			if i == len(ring)-1 {
				prefix = "└─ "
			}
			detail := fmt.Sprintf("%s · %d out / %d in", n.Role, out[n.Key], in[n.Key])
			b.WriteString(fmt.Sprintf("  %s%s%s %s\n", pipe, prefix, brandFn(n.Identity.Label()), subtleFn(detail)))
		}
	}
	return b.String()
}
