package format

import (
	"fmt"
	"strings"

	"novapress/internal/api"
)

// CausalEdges renders a causal graph as one row per edge, in the order the
// backend sent them.
func CausalEdges(g *api.CausalGraph, m Mode) string {
	tb := NewTable(m)
	if g.CentralEntity != "" {
		tb.Title("Entité centrale : " + g.CentralEntity)
	}
	tb.Header("Cause", "Relation", "Effet", "Confiance")
	for _, e := range g.Edges {
		tb.Row(nodeLabel(g, e.Source), e.RelationType, nodeLabel(g, e.Target), fmt.Sprintf("%.2f", e.Confidence))
	}
	tb.Columns(
		ColumnConfig{Number: 1, MaxWidth: 40},
		ColumnConfig{Number: 3, MaxWidth: 40},
		ColumnConfig{Number: 4, Align: AlignRight},
	)
	return tb.String()
}

func nodeLabel(g *api.CausalGraph, id string) string {
	if n, ok := g.Node(id); ok && n.Label != "" {
		return n.Label
	}
	return id
}

var dotShapes = map[string]string{
	"event":    "box",
	"entity":   "ellipse",
	"decision": "diamond",
}

// CausalDOT renders a causal graph in Graphviz DOT. Edge width follows
// confidence.
func CausalDOT(g *api.CausalGraph) string {
	var b strings.Builder
	name := g.SynthesisID
	if name == "" {
		name = "causal"
	}
	fmt.Fprintf(&b, "digraph %s {\n", dotID(name))
	b.WriteString("  rankdir=LR;\n  node [fontname=\"Helvetica\"];\n")
	for _, n := range g.Nodes {
		shape, ok := dotShapes[n.NodeType]
		if !ok {
			shape = "ellipse"
		}
		fmt.Fprintf(&b, "  %s [label=%s, shape=%s];\n", dotID(n.ID), dotID(n.Label), shape)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s -> %s [label=%s, penwidth=%.1f];\n",
			dotID(e.Source), dotID(e.Target), dotID(e.RelationType), 1+3*e.Confidence)
	}
	b.WriteString("}\n")
	return b.String()
}

// dotID quotes s as a DOT string literal.
func dotID(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}
