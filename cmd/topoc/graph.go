package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cidrware/topoc/internal/graphviz"
)

func newGraphCmd() *cobra.Command {
	var (
		outputFormat  string
		clusterByKind bool
	)

	cmd := &cobra.Command{
		Use:   "graph [intent]",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies.

The output can be rendered with Graphviz:
    topoc graph topology.yaml | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    topoc graph topology.yaml -f mermaid

Examples:
    topoc graph topology.yaml
    topoc graph topology.yaml -c              # cluster by resource kind
    topoc graph topology.yaml -f mermaid      # mermaid format`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(args[0], outputFormat, clusterByKind)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&clusterByKind, "cluster", "c", false, "Cluster resources by kind")

	return cmd
}

func runGraph(path, format string, cluster bool) error {
	logger := newLogger()

	nodes, err := compile(path, logger)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("no resources found")
	}

	var graphFormat graphviz.Format
	switch format {
	case "dot":
		graphFormat = graphviz.FormatDOT
	case "mermaid":
		graphFormat = graphviz.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
	}

	gen := &graphviz.Generator{
		Format:        graphFormat,
		ClusterByKind: cluster,
	}

	return gen.Generate(nodes, os.Stdout)
}
