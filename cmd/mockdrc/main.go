// mockdrc - stateful mock of the DRC backend for integration testing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mockdrc",
		Short:        "Stateful mock of the DRC ingestion API",
		Long:         "mockdrc simulates the DRC backend for integration tests: first-time success,\nduplicate conflicts and operator-scripted responses per submission id.",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mockdrc %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
