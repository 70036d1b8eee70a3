package main

import (
	"fmt"

	"github.com/hyperlinklaw/recordlink/internal/database"
	"github.com/spf13/cobra"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [record-id]",
		Short: "List stored linking runs",
		Long: `Runs lists runs saved in the local database, most recent first, with
their resolution counters. Pass a record identifier (the record's base
filename) to list only its runs.

Use the run identifier with relink --run to apply overrides to a
specific run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunsCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recordlink in current or home directory)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	runs, err := db.ListRuns(cmd.Context(), target)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored runs.")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.RunID, r.TargetRecord)
		fmt.Fprintf(cmd.OutOrStdout(), "  detected: %d  auto: %d  escalated: %d  review: %d  placed: %d\n",
			r.LinkSummary["detected"],
			r.LinkSummary["auto_linked"],
			r.LinkSummary["escalated"],
			r.LinkSummary["needs_review"],
			r.LinkSummary["placed"],
		)
	}
	return nil
}
