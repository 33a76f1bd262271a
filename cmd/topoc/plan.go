package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cidrware/topoc"
	"github.com/cidrware/topoc/internal/planner"
)

func newPlanCmd() *cobra.Command {
	var (
		outputFormat string
		oldIsState   bool
	)

	cmd := &cobra.Command{
		Use:   "plan [old] [new]",
		Short: "Diff two compiled topologies into an action plan",
		Long: `Plan compiles both intents and classifies every resource as create, update,
replace, or delete. Deletes are ordered last, dependents before dependencies.

The old side can also be a state file saved earlier with 'topoc build -o':

    topoc plan --old-state state.yaml topology.yaml

Examples:
    topoc plan old.yaml new.yaml
    topoc plan old.yaml new.yaml --format json
    topoc plan --old-state state.yaml topology.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args[0], args[1], outputFormat, oldIsState)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, json, or yaml")
	cmd.Flags().BoolVar(&oldIsState, "old-state", false, "Treat the old argument as a saved build output instead of an intent")

	return cmd
}

func runPlan(oldPath, newPath, format string, oldIsState bool) error {
	logger := newLogger()

	var (
		oldNodes []topoc.Node
		err      error
	)
	if oldIsState {
		oldNodes, err = loadState(oldPath)
	} else {
		oldNodes, err = compile(oldPath, logger)
	}
	if err != nil {
		return fmt.Errorf("compiling old topology: %w", err)
	}

	newNodes, err := compile(newPath, logger)
	if err != nil {
		return fmt.Errorf("compiling new topology: %w", err)
	}

	actions := planner.Diff(oldNodes, newNodes)
	result := topoc.PlanResult{
		Actions: actions,
		Summary: topoc.Summarize(actions),
	}

	switch format {
	case "text":
		fmt.Print(formatPlanText(result))
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}

// formatPlanText renders a plan in a compact, human-reviewable form.
func formatPlanText(result topoc.PlanResult) string {
	var sb strings.Builder

	if len(result.Actions) == 0 {
		sb.WriteString("No changes. Topologies match.\n")
		return sb.String()
	}

	for _, a := range result.Actions {
		switch a.Type {
		case topoc.ActionCreate:
			fmt.Fprintf(&sb, "  + create  %s\n", a.NodeID)
		case topoc.ActionUpdate:
			fmt.Fprintf(&sb, "  ~ update  %s (%s)\n", a.NodeID, strings.Join(a.Changed, ", "))
		case topoc.ActionReplace:
			fmt.Fprintf(&sb, "  ! replace %s (%s)\n", a.NodeID, a.Reason)
		case topoc.ActionDelete:
			fmt.Fprintf(&sb, "  - delete  %s\n", a.NodeID)
		}
	}

	s := result.Summary
	fmt.Fprintf(&sb, "\nPlan: %d to create, %d to update, %d to replace, %d to delete.\n",
		s.Creates, s.Updates, s.Replaces, s.Deletes)
	return sb.String()
}
