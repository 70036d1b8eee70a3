// Package main provides the entry point for the recordlink CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for recordlink.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordlink",
		Short: "Cross-reference linker for court record bundles",
		Long: `recordlink resolves tab, exhibit, and section references in legal briefs
to their destination pages in a trial record, and assembles a combined
document model with navigation links and a verification report.

The pipeline is deterministic: the same inputs always produce the same
links and the same verification hash.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewBuildCmd())
	cmd.AddCommand(NewDetectCmd())
	cmd.AddCommand(NewRelinkCmd())
	cmd.AddCommand(NewOCRCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
