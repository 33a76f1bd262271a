// Package graphviz generates DOT and Mermaid format dependency graphs from
// emitted resource nodes.
package graphviz

import (
	"io"
	"strings"

	"github.com/emicklei/dot"

	"github.com/cidrware/topoc"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from emitted nodes.
type Generator struct {
	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByKind groups nodes by resource kind.
	ClusterByKind bool
}

// Generate creates a dependency graph and writes it to w.
func (g *Generator) Generate(nodes []topoc.Node, w io.Writer) error {
	graph := g.buildGraph(nodes)

	format := g.Format
	if format == "" {
		format = FormatDOT
	}

	var output string
	if format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := w.Write([]byte(output))
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(nodes []topoc.Node) (string, error) {
	var sb strings.Builder
	if err := g.Generate(nodes, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// buildGraph creates the dot.Graph structure from emitted nodes.
func (g *Generator) buildGraph(nodes []topoc.Node) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	weakRefs := buildWeakRefSet(nodes)

	// Nodes created inside a cluster subgraph are not visible through the
	// root graph's Node lookup, so edges must reuse the handles recorded
	// while adding.
	var handles map[string]dot.Node
	if g.ClusterByKind {
		handles = g.addClusteredNodes(graph, nodes)
	} else {
		handles = g.addNodes(graph, nodes)
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			to, exists := handles[dep]
			if !exists {
				continue
			}
			e := graph.Edge(handles[n.ID], to)

			// Weak references (route targets, instance placements)
			// render blue to distinguish them from ownership edges.
			if weakRefs[n.ID+"->"+dep] {
				e.Attr("color", "blue")
			}
		}
	}

	return graph
}

// buildWeakRefSet collects edges that are weak by-identifier lookups rather
// than ownership edges.
func buildWeakRefSet(nodes []topoc.Node) map[string]bool {
	weak := make(map[string]bool)
	for _, n := range nodes {
		switch n.Kind {
		case topoc.KindRouteRule:
			if target, ok := n.Properties["target"].(string); ok {
				weak[n.ID+"->"+target] = true
			}
		case topoc.KindInstance:
			for _, dep := range n.DependsOn {
				weak[n.ID+"->"+dep] = true
			}
		case topoc.KindNatGateway:
			if subnet, ok := n.Properties["subnet"].(string); ok {
				weak[n.ID+"->"+subnet] = true
			}
		}
	}
	return weak
}

// addNodes adds resource nodes without clustering and returns their handles
// keyed by identifier.
func (g *Generator) addNodes(graph *dot.Graph, nodes []topoc.Node) map[string]dot.Node {
	handles := make(map[string]dot.Node, len(nodes))
	for _, res := range nodes {
		n := graph.Node(res.ID)
		n.Label(res.ID + "\\n[" + string(res.Kind) + "]")
		handles[res.ID] = n
	}
	return handles
}

// addClusteredNodes adds resource nodes grouped by kind and returns their
// handles keyed by identifier.
func (g *Generator) addClusteredNodes(graph *dot.Graph, nodes []topoc.Node) map[string]dot.Node {
	byKind := make(map[topoc.Kind][]topoc.Node)
	for _, n := range nodes {
		byKind[n.Kind] = append(byKind[n.Kind], n)
	}

	handles := make(map[string]dot.Node, len(nodes))
	for kind, members := range byKind {
		if len(members) > 1 {
			cluster := graph.Subgraph(string(kind), dot.ClusterOption{})
			cluster.Attr("label", string(kind))
			cluster.Attr("style", "rounded")
			cluster.Attr("bgcolor", "lightyellow")

			for _, res := range members {
				n := cluster.Node(res.ID)
				n.Label(res.ID + "\\n[" + string(res.Kind) + "]")
				handles[res.ID] = n
			}
		} else {
			for _, res := range members {
				n := graph.Node(res.ID)
				n.Label(res.ID + "\\n[" + string(res.Kind) + "]")
				handles[res.ID] = n
			}
		}
	}
	return handles
}
