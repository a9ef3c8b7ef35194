package depgraph

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var nodeColors = map[NodeType]string{
	NodeMissing:    "lightsalmon",
	NodeLeaf:       "lightgreen",
	NodeDependency: "lightblue",
}

const cycleColor = "red"

// WriteDOT renders the graph in Graphviz format.
func (g *Graph) WriteDOT(w io.Writer) error {
	inCycle := make(map[string]bool, len(g.Cycle))
	for _, id := range g.Cycle {
		inCycle[id] = true
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph mods {")
	fmt.Fprintln(bw, `  rankdir="LR";`)
	fmt.Fprintln(bw, `  node [shape=box, style="rounded,filled", fontname="Helvetica"];`)
	for _, n := range g.Nodes {
		attrs := []string{
			fmt.Sprintf(`label="%s\n%.2f MB"`, escape(n.Name), n.SizeMB),
			fmt.Sprintf(`fillcolor="%s"`, nodeColors[n.Type]),
		}
		if inCycle[n.ID] {
			attrs = append(attrs, fmt.Sprintf(`color="%s"`, cycleColor), "penwidth=2")
		}
		fmt.Fprintf(bw, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}
	for _, l := range g.Links {
		attr := ""
		if l.Type == LinkMissing {
			attr = fmt.Sprintf(` [style=dashed, color="%s"]`, cycleColor)
		} else if inCycle[l.Source] && inCycle[l.Target] {
			attr = fmt.Sprintf(` [color="%s", penwidth=1.5]`, cycleColor)
		}
		fmt.Fprintf(bw, "  %q -> %q%s;\n", l.Source, l.Target, attr)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
