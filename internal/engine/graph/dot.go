package graph

import (
	"fmt"
	"strings"
)

// DOT renders the graph in Graphviz format. Packages and edges that take
// part in a cycle are highlighted; the target package, if set, is bold.
func (g *Graph) DOT(target string, cycles [][]string) string {
	var buf strings.Builder

	buf.WriteString("digraph linkgraph {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=rounded, fontname=\"Helvetica\", fontsize=10];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  splines=polyline;\n")
	buf.WriteString("  overlap=false;\n\n")

	cycleEdges := make(map[string]map[string]bool)
	inCycle := make(map[string]bool)
	for _, cycle := range cycles {
		for i := 0; i < len(cycle); i++ {
			from := cycle[i]
			to := cycle[(i+1)%len(cycle)]
			if cycleEdges[from] == nil {
				cycleEdges[from] = make(map[string]bool)
			}
			cycleEdges[from][to] = true
			inCycle[from] = true
		}
	}

	for _, name := range g.nodeNames() {
		label := name
		if p, ok := g.packages[name]; ok {
			label = fmt.Sprintf("%s\\n(%d objects, %d entry points)", name, p.Objects, p.EntryPoints)
		}
		attrs := []string{fmt.Sprintf("label=\"%s\"", label)}
		if inCycle[name] {
			attrs = append(attrs, "fillcolor=\"mistyrose\"", "color=\"red\"", "style=\"rounded,filled\"")
		} else {
			attrs = append(attrs, "color=\"darkslategrey\"")
		}
		if name == target {
			attrs = append(attrs, "penwidth=2.5")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", name, strings.Join(attrs, ", "))
	}
	buf.WriteString("\n")

	for _, e := range g.Edges() {
		label := fmt.Sprintf("%d sym", e.Symbols)
		if cycleEdges[e.From][e.To] {
			fmt.Fprintf(&buf, "  %q -> %q [color=\"red\", penwidth=3.0, label=%q];\n", e.From, e.To, label+", CYCLE")
		} else {
			fmt.Fprintf(&buf, "  %q -> %q [color=\"forestgreen\", label=%q];\n", e.From, e.To, label)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}
