package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/hyperlinklaw/recordlink/internal/pipeline"
	"github.com/hyperlinklaw/recordlink/internal/report"
	"github.com/spf13/cobra"
)

// NewDetectCmd creates the detect command.
func NewDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [brief.pdf]",
		Short: "Detect the index in a brief and print its entries",
		Long: `Detect locates the index page in a brief, follows its continuation pages,
and extracts the numbered entries without resolving destinations.

Use it to check what the full build would work from: the anchor page, the
entry numbers and labels, and whether the count matches expectations.

Examples:
  # Print the detected index as a Markdown table
  recordlink detect brief.pdf

  # Machine-readable manifest, flagged if not exactly 24 entries
  recordlink detect --json --expected-items 24 brief.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runDetectCmd,
	}

	cmd.Flags().IntP("expected-items", "e", 0,
		"Expected index entry count; a differing detected count is flagged")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recordlink in current or home directory)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON manifest (mutually exclusive with --markdown and --csv)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown manifest (the default)")
	cmd.Flags().Bool("csv", false,
		"Output CSV manifest rows")
	cmd.Flags().StringP("output", "o", "",
		"Write manifest to specified file path (creates directories if needed)")

	return cmd
}

// runDetectCmd executes the detect command.
func runDetectCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	flags, err := parseReportFlags(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	ctx := cmd.Context()

	// Detection does not need the page store; briefs with a native text
	// layer are the common case, and a one-shot inspection should not
	// populate the database.
	source, info, closeDoc, err := openDocument(args[0], cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeDoc()

	run := model.NewRun()
	run.Briefs = []model.DocumentInfo{info}

	step := pipeline.NewDetectStep(cfg, source, pipeline.WithDetectLogger(logger))
	if err := step.Do(ctx, run); err != nil {
		return fmt.Errorf("index detection failed: %w", err)
	}

	fmt.Printf("Index found on page %d with %d entries\n\n", run.AnchorPage, len(run.Items))

	manifest := report.BuildManifest(run, cfg.ExpectedItems)
	return outputManifest(flags, cfg.ExpectedItems, manifest)
}

// outputManifest writes the index manifest in the requested format.
func outputManifest(flags reportFlags, expectedItems int, manifest *model.Manifest) error {
	var output *os.File
	if flags.output != "" {
		dir := filepath.Dir(flags.output)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(flags.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var w report.Writer
	switch {
	case flags.json:
		w = report.NewJSONWriter(output,
			report.WithPrettyPrint(),
			report.WithExpectedItems(expectedItems))
	case flags.csv:
		w = report.NewCSVWriter(output)
	default:
		w = report.NewMarkdownWriter(output,
			report.WithMarkdownExpectedItems(expectedItems))
	}

	_, err := w.WriteManifest(manifest)
	return err
}
