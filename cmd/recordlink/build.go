package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/database"
	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/escalate"
	"github.com/hyperlinklaw/recordlink/internal/log"
	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/hyperlinklaw/recordlink/internal/pipeline"
	"github.com/hyperlinklaw/recordlink/internal/report"
	"github.com/spf13/cobra"
)

// apiKeyEnv is the environment variable holding the escalation service
// credential. Credentials never come from flags or the config file.
const apiKeyEnv = "RECORDLINK_API_KEY"

// NewBuildCmd creates the build command.
func NewBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [brief.pdf...]",
		Short: "Resolve references and assemble the linked record",
		Long: `Build runs the full linking pipeline over one or more briefs and a target
trial record:

- Detects the index in the first brief and extracts its entries
- Scans every brief for tab, exhibit, schedule, and paragraph mentions
- Resolves each mention to a destination page in the record
- Escalates low-confidence references to the decision service, if configured
- Assembles the combined document model and verification report

The index is expected in the first brief listed. Runs are saved to the
local database for later relinking.

Examples:
  # Link one brief against the trial record
  recordlink build --record record.pdf brief.pdf

  # Multiple briefs, assembled in the order given
  recordlink build --record record.pdf applicant.pdf respondent.pdf

  # JSON report written to a file
  recordlink build --record record.pdf --json -o out/report.json brief.pdf

  # Flag a run whose index does not have exactly 24 entries
  recordlink build --record record.pdf --expected-items 24 brief.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBuildCmd,
	}

	cmd.Flags().StringP("record", "r", "",
		"Target trial record PDF the references point into (required)")
	cmd.Flags().Float64P("min-confidence", "M", config.DefaultMinConfidence,
		"Auto-link threshold; top candidates below it are escalated")
	cmd.Flags().IntP("expected-items", "e", 0,
		"Expected index entry count; a differing detected count is flagged")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recordlink in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown and --csv)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (the default)")
	cmd.Flags().Bool("csv", false,
		"Output CSV review rows (mutually exclusive with --json and --markdown)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runBuildCmd executes the build command.
func runBuildCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	recordPath, err := cmd.Flags().GetString("record")
	if err != nil {
		return err
	}
	if recordPath == "" {
		return errors.New("no target record provided (specify the trial record PDF with --record)")
	}

	flags, err := parseReportFlags(cmd)
	if err != nil {
		return err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runBuild(ctx, cfg, flags, args, recordPath, logger)
}

// runBuild executes the linking pipeline.
func runBuild(ctx context.Context, cfg *config.Config, flags reportFlags, briefPaths []string, recordPath string, logger *slog.Logger) error {
	logger.Info("starting build",
		"briefs", briefPaths,
		"record", recordPath,
		"minConfidence", cfg.MinConfidence,
	)

	// The database doubles as the OCR page store and the run archive.
	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DataDir)

	run := model.NewRun()

	briefs := make([]document.TextSource, 0, len(briefPaths))
	for _, path := range briefPaths {
		provider, info, closeDoc, err := openDocument(path, cfg, db, logger)
		if err != nil {
			return err
		}
		defer closeDoc()
		briefs = append(briefs, provider)
		run.Briefs = append(run.Briefs, info)
	}

	target, info, closeTarget, err := openDocument(recordPath, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeTarget()
	run.TargetRecord = info

	resolver := escalate.NewClient(cfg,
		escalate.WithAPIKey(os.Getenv(apiKeyEnv)),
		escalate.WithLogger(logger),
	)

	p := pipeline.DefaultPipeline(cfg, briefs, target, resolver, pipeline.WithLogger(logger))

	fmt.Printf("Linking %d brief(s) against %s...\n", len(briefPaths), filepath.Base(recordPath))
	startTime := time.Now()

	if err := p.Execute(ctx, run); err != nil {
		return fmt.Errorf("linking failed: %w", err)
	}

	elapsed := time.Since(startTime)
	fmt.Printf("Linking completed in %s\n\n", elapsed.Round(time.Millisecond))

	if err := outputReport(flags, cfg.ExpectedItems, run); err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	return saveRunReport(ctx, db, run, logger)
}

// openDocument opens a PDF and wraps it in a page provider backed by the
// store and, when configured, the OCR service.
func openDocument(path string, cfg *config.Config, store document.PageStore, logger *slog.Logger) (*document.Provider, model.DocumentInfo, func(), error) {
	reader, err := document.OpenPDF(path)
	if err != nil {
		return nil, model.DocumentInfo{}, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	opts := []document.ProviderOption{
		document.WithPageStore(store),
		document.WithNativeThreshold(cfg.NativeTextThreshold),
		document.WithLogger(logger),
	}
	if cfg.OCREndpoint != "" {
		ocr := document.NewOCRClient(cfg.OCREndpoint,
			document.WithOCRDefaults(cfg.OCRDPI, cfg.OCRPSM))
		opts = append(opts, document.WithOCRClient(ocr))
	}

	provider := document.NewProvider(reader, opts...)
	info := model.DocumentInfo{
		ID:    reader.ID(),
		Path:  reader.Path(),
		Pages: reader.PageCount(),
	}
	closeDoc := func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close document", "path", path, "error", err)
		}
	}
	return provider, info, closeDoc, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the config file and cobra command flags.
// Flags override file settings; file settings override defaults.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently fall back to defaults.
	explicitConfigPath := configPath != ""
	foundPath := config.FindConfigFile(configPath)

	var cfg *config.Config
	if foundPath != "" {
		cfg, err = config.LoadFile(foundPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", foundPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	} else {
		cfg = config.New()
	}

	if cmd.Flags().Changed("min-confidence") {
		cfg.MinConfidence, err = cmd.Flags().GetFloat64("min-confidence")
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("expected-items") {
		cfg.ExpectedItems, err = cmd.Flags().GetInt("expected-items")
		if err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// setupLogger creates a structured logger based on verbosity setting.
// The redacting handler keeps credentials and document text out of logs.
func setupLogger(verbose bool) *slog.Logger {
	return log.NewLogger(os.Stderr, verbose)
}

// reportFlags selects the report format and destination.
type reportFlags struct {
	json     bool
	markdown bool
	csv      bool
	output   string
}

// parseReportFlags reads the report flags shared by build and relink.
func parseReportFlags(cmd *cobra.Command) (reportFlags, error) {
	var flags reportFlags
	var err error

	flags.json, err = cmd.Flags().GetBool("json")
	if err != nil {
		return flags, err
	}
	flags.markdown, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return flags, err
	}
	flags.csv, err = cmd.Flags().GetBool("csv")
	if err != nil {
		return flags, err
	}
	flags.output, err = cmd.Flags().GetString("output")
	if err != nil {
		return flags, err
	}

	picked := 0
	for _, b := range []bool{flags.json, flags.markdown, flags.csv} {
		if b {
			picked++
		}
	}
	if picked > 1 {
		return flags, errors.New("only one of --json, --markdown, --csv may be specified")
	}
	return flags, nil
}

// outputReport writes the run report in the requested format.
func outputReport(flags reportFlags, expectedItems int, run *model.Run) error {
	// Determine output destination
	var output *os.File
	if flags.output != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(flags.output)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Create/overwrite the output file with secure permissions (0600).
		// Reports quote filing text that may be under a sealing order.
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

	_, err := w.Write(run)
	return err
}

// saveRunReport persists the run to the database.
// If db is nil, this is a no-op.
func saveRunReport(ctx context.Context, db *database.RunDB, run *model.Run, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	if err := db.SaveRunReport(ctx, run); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	logger.Info("run report saved", "runID", run.ID)
	return nil
}
