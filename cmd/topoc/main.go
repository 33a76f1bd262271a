// Command topoc compiles declarative network topology intents into
// dependency-ordered resource graphs.
//
// Usage:
//
//	topoc build topology.yaml        Compile and emit the ordered resource list
//	topoc validate topology.yaml     Check network invariants
//	topoc plan old.yaml new.yaml     Diff two compiled topologies
//	topoc export topology.yaml       Render a CloudFormation template
//	topoc graph topology.yaml        Render the dependency graph
//	topoc version                    Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "topoc",
		Short: "Compile network topology intents into resource graphs",
		Long: `topoc compiles an abstract description of a segmented network (subnets,
tiers, gateways, policy rules) into a validated, dependency-ordered resource
graph.

Describe your topology declaratively:

    network:
      cidr: 10.0.0.0/16
    subnets:
      - {name: app-a, cidr: 10.0.1.0/24, zone: a, tier: public}
      - {name: db-b,  cidr: 10.0.2.0/24, zone: b, tier: private}

Then compile it:

    topoc build topology.yaml`,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newBuildCmd(),
		newValidateCmd(),
		newPlanCmd(),
		newGraphCmd(),
		newExportCmd(),
		newWatchCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("topoc %s\n", getVersion())
		},
	}
}
