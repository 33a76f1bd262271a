package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/builder"
	"github.com/cidrware/topoc/internal/intent"
	"github.com/cidrware/topoc/internal/validator"
)

func newValidateCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate [intent]",
		Short: "Check a topology intent against the network invariants",
		Long: `Validate builds the resource graph and checks it for problems.

Checks performed:
  - CIDR containment: every subnet lies inside the network CIDR, no overlaps
  - Reachability: public subnets route to an internet gateway, private
    non-isolated subnets route to a NAT gateway
  - References: every weak reference resolves to an existing node
  - Policy rules: directions, protocols, and port ranges are well-formed

Examples:
    topoc validate topology.yaml
    topoc validate topology.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args[0], outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func runValidate(path, format string) error {
	in, err := intent.Read(path)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	g, err := builder.Build(in)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	result := topoc.ValidateResult{
		Success:   true,
		Resources: len(g.Nodes),
	}

	if err := validator.Validate(g); err != nil {
		result.Success = false
		var vErr *topoc.ValidationError
		if errors.As(err, &vErr) {
			for _, id := range vErr.NodeIDs {
				result.Errors = append(result.Errors, fmt.Sprintf("[%s] %s", vErr.Check, id))
			}
			result.Errors = append(result.Errors, vErr.Reason)
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return outputValidateResult(result, format)
}

func outputValidateResult(result topoc.ValidateResult, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))

	case "text":
		if result.Success {
			fmt.Printf("Validation passed: %d resources OK\n", result.Resources)
			return nil
		}

		fmt.Println("Validation FAILED:")
		for _, errMsg := range result.Errors {
			fmt.Printf("  ERROR: %s\n", errMsg)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !result.Success {
		os.Exit(1)
	}

	return nil
}
