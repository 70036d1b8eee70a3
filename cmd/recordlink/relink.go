package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hyperlinklaw/recordlink/internal/database"
	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/hyperlinklaw/recordlink/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewRelinkCmd creates the relink command.
func NewRelinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relink [record-id]",
		Short: "Apply manual destination overrides to a stored run",
		Long: `Relink loads a stored run, applies reviewer-supplied destination
overrides to its index entries, rebuilds the navigation links, and
revalidates. Detection and scanning are not repeated; only the links and
the verification report change.

The run is selected by --run, or by the most recent run saved for the
given record identifier (the record's base filename).

Overrides are given as --set NO=PAGE pairs, or as a JSON file of
{"no": N, "start_page": P} objects via --file.

Examples:
  # Move index entry 3 to record page 41 in the latest run for record.pdf
  recordlink relink --set 3=41 record.pdf

  # Several overrides against a specific run
  recordlink relink --run 4f7c... --set 3=41 --set 7=102

  # Overrides prepared by review tooling
  recordlink relink --file overrides.json record.pdf`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRelinkCmd,
	}

	cmd.Flags().String("run", "",
		"Run identifier to relink (default: latest run for the record)")
	cmd.Flags().StringArrayP("set", "s", nil,
		"Destination override as NO=PAGE (repeatable)")
	cmd.Flags().StringP("file", "f", "",
		"JSON file of destination overrides")
	cmd.Flags().IntP("expected-items", "e", 0,
		"Expected index entry count; a differing detected count is flagged")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recordlink in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --csv)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (the default)")
	cmd.Flags().Bool("csv", false,
		"Output CSV review rows")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runRelinkCmd executes the relink command.
func runRelinkCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	flags, err := parseReportFlags(cmd)
	if err != nil {
		return err
	}

	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	if runID == "" && len(args) == 0 {
		return errors.New("no run selected (specify --run or a record identifier)")
	}

	overrides, err := collectOverrides(cmd)
	if err != nil {
		return err
	}
	if len(overrides) == 0 {
		return errors.New("no overrides provided (use --set NO=PAGE or --file)")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	ctx := cmd.Context()

	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var run *model.Run
	if runID != "" {
		run, err = db.GetRunByID(ctx, runID)
	} else {
		run, err = db.GetLatestRun(ctx, args[0])
	}
	if err != nil {
		return err
	}
	if run == nil {
		return errors.New("no stored run found (run build first)")
	}

	overrider := pipeline.NewOverrider(run, pipeline.WithOverriderLogger(logger))
	if err := overrider.ApplyAll(overrides); err != nil {
		return fmt.Errorf("override failed: %w", err)
	}

	fmt.Printf("Applied %d override(s) to run %s\n\n", len(overrides), run.ID)

	if err := outputReport(flags, cfg.ExpectedItems, run); err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	return saveRunReport(ctx, db, run, logger)
}

// collectOverrides merges --set pairs and the --file payload, in that order.
func collectOverrides(cmd *cobra.Command) ([]pipeline.Override, error) {
	var overrides []pipeline.Override

	pairs, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return nil, err
	}
	for _, pair := range pairs {
		ov, err := parseOverridePair(pair)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, ov)
	}

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // User-provided override path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read overrides file: %w", err)
		}
		var fromFile []pipeline.Override
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse overrides file %s: %w", path, err)
		}
		overrides = append(overrides, fromFile...)
	}

	return overrides, nil
}

// parseOverridePair parses one NO=PAGE override.
func parseOverridePair(pair string) (pipeline.Override, error) {
	no, page, ok := strings.Cut(pair, "=")
	if !ok {
		return pipeline.Override{}, fmt.Errorf("invalid override %q (expected NO=PAGE)", pair)
	}
	n, err := strconv.Atoi(strings.TrimSpace(no))
	if err != nil {
		return pipeline.Override{}, fmt.Errorf("invalid item number in override %q", pair)
	}
	p, err := strconv.Atoi(strings.TrimSpace(page))
	if err != nil {
		return pipeline.Override{}, fmt.Errorf("invalid page number in override %q", pair)
	}
	return pipeline.Override{No: n, StartPage: p}, nil
}
