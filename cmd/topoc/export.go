package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cidrware/topoc/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
		description  string
		instanceType string
		runLint      bool
	)

	cmd := &cobra.Command{
		Use:   "export [intent]",
		Short: "Render a CloudFormation template from a topology intent",
		Long: `Export compiles the intent and serializes the ordered resource list as a
CloudFormation template. Backend-specific glue (gateway attachment, NAT
elastic IPs, instance profiles) is synthesized automatically.

With --lint the written template is checked with cfn-lint.

Examples:
    topoc export topology.yaml
    topoc export topology.yaml -o template.yaml
    topoc export topology.yaml -o template.yaml --lint
    topoc export topology.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], exportOptions{
				format:       outputFormat,
				outputFile:   outputFile,
				description:  description,
				instanceType: instanceType,
				lint:         runLint,
			})
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Template description")
	cmd.Flags().StringVar(&instanceType, "instance-type", "", "Instance type for compute instances (default: t3.micro)")
	cmd.Flags().BoolVar(&runLint, "lint", false, "Lint the written template (requires --output)")

	return cmd
}

type exportOptions struct {
	format       string
	outputFile   string
	description  string
	instanceType string
	lint         bool
}

func runExport(path string, opts exportOptions) error {
	logger := newLogger()

	if opts.lint && opts.outputFile == "" {
		return fmt.Errorf("--lint requires --output")
	}

	nodes, err := compile(path, logger)
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	tmpl, err := export.FromNodes(nodes, export.Options{
		Description:  opts.description,
		InstanceType: opts.instanceType,
	})
	if err != nil {
		return err
	}

	var data []byte
	switch opts.format {
	case "yaml":
		data, err = export.ToYAML(tmpl)
	case "json":
		data, err = export.ToJSON(tmpl)
	default:
		return fmt.Errorf("unknown format: %s", opts.format)
	}
	if err != nil {
		return err
	}

	if opts.outputFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(opts.outputFile, data, 0644); err != nil {
		return err
	}
	logger.Info("template written", "path", opts.outputFile, "resources", len(tmpl.Resources))

	if !opts.lint {
		return nil
	}

	result, err := export.Lint(opts.outputFile)
	if err != nil {
		return fmt.Errorf("linting template: %w", err)
	}
	for _, msg := range result.Errors {
		logger.Error(msg)
	}
	for _, msg := range result.Warnings {
		logger.Warn(msg)
	}
	for _, msg := range result.Informational {
		logger.Info(msg)
	}
	if !result.Passed {
		return fmt.Errorf("template lint failed with %d issues", result.TotalIssues())
	}
	logger.Info("template lint passed")
	return nil
}
