package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/emitter"
)

func newBuildCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
	)

	cmd := &cobra.Command{
		Use:   "build [intent]",
		Short: "Compile a topology intent into an ordered resource list",
		Long: `Build reads a topology intent, validates it, and emits the dependency-ordered
resource list. The output doubles as the saved state consumed by plan.

Examples:
    topoc build topology.yaml
    topoc build topology.yaml -o state.yaml
    topoc build topology.hcl --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(args[0], outputFormat, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runBuild(path, format, outputFile string) error {
	logger := newLogger()
	tracker := newProgress(logger)

	nodes, err := compile(path, logger)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	result := topoc.BuildResult{
		Fingerprint: emitter.Fingerprint(nodes),
		Resources:   nodes,
	}
	tracker.done(fmt.Sprintf("compiled %d resources", len(nodes)))

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(result)
	case "json":
		data, err = json.MarshalIndent(result, "", "  ")
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if err != nil {
		return err
	}

	if outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(outputFile, data, 0644)
}
