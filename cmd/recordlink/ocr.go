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
	"github.com/hyperlinklaw/recordlink/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewOCRCmd creates the ocr command.
func NewOCRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr [document.pdf...]",
		Short: "Bulk-populate the OCR page store for scanned documents",
		Long: `OCR recognizes every page of the given documents ahead of time and stores
the results, so build runs never wait on recognition. Pages already in the
store are skipped, making interrupted batches resumable.

Pages with a usable native text layer are stored without OCR. A page whose
recognition confidence falls below the retry threshold is recognized once
more at a higher resolution, and the better result is kept. Failed pages
are stored as empty results, and pages still below the confidence
threshold are listed after processing.

Examples:
  # Populate the store for a scanned record
  recordlink ocr record.pdf

  # Several documents, eight pages in flight at a time
  recordlink ocr --concurrency 8 record.pdf exhibits.pdf

  # Point at a non-default recognition service
  recordlink ocr --endpoint http://127.0.0.1:8884 record.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: runOCRCmd,
	}

	cmd.Flags().String("endpoint", "",
		"OCR service base URL (overrides the config file)")
	cmd.Flags().Int("dpi", config.DefaultOCRDPI,
		"First-pass rasterization resolution")
	cmd.Flags().IntP("concurrency", "n", config.DefaultBatchConcurrency,
		"Pages in flight per document")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recordlink in current or home directory)")

	return cmd
}

// runOCRCmd executes the ocr command.
func runOCRCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	endpoint, err := cmd.Flags().GetString("endpoint")
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.OCREndpoint = endpoint
	}
	if cfg.OCREndpoint == "" {
		return errors.New("no OCR endpoint configured (set ocr_endpoint in .recordlink or pass --endpoint)")
	}

	if cmd.Flags().Changed("dpi") {
		cfg.OCRDPI, err = cmd.Flags().GetInt("dpi")
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.BatchConcurrency, err = cmd.Flags().GetInt("concurrency")
		if err != nil {
			return err
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	verbose := getVerboseFlag(cmd)
	logger := setupLogger(verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runOCR(ctx, cfg, args, logger)
}

// runOCR processes the documents through the batch recognizer.
func runOCR(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) error {
	db, err := database.Open(cfg.DataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Info("database opened", "dir", cfg.DataDir)

	docs := make([]pipeline.BatchDocument, 0, len(paths))
	for _, path := range paths {
		reader, err := document.OpenPDF(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer reader.Close()
		docs = append(docs, reader)
	}

	ocr := document.NewOCRClient(cfg.OCREndpoint,
		document.WithOCRDefaults(cfg.OCRDPI, cfg.OCRPSM))

	bp := pipeline.NewBatchProcessor(cfg, db, ocr,
		pipeline.WithBatchLogger(logger),
		pipeline.WithBatchConcurrency(cfg.BatchConcurrency),
	)

	fmt.Printf("Processing %d document(s) (concurrency: %d)...\n\n", len(docs), cfg.BatchConcurrency)
	startTime := time.Now()

	stats, err := bp.ProcessAll(ctx, docs)

	// Stats for completed documents are reported even when a later document
	// failed; the store keeps everything processed so far.
	for i, st := range stats {
		fmt.Printf("%s: %d pages (%d skipped, %d native, %d recognized, %d retried, %d failed)\n",
			filepath.Base(paths[i]), st.Pages, st.Skipped, st.Native, st.Recognized, st.Retried, st.Failed)
	}

	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	// Surface pages the scoring passes should not be trusted on.
	for i, doc := range docs {
		low, lowErr := db.LowConfidencePages(ctx, doc.ID(), cfg.OCRMinConfidence)
		if lowErr != nil {
			logger.Warn("low-confidence query failed", "document", doc.ID(), "error", lowErr)
			continue
		}
		if len(low) > 0 {
			fmt.Printf("%s: %d page(s) below confidence %.2f: %v\n",
				filepath.Base(paths[i]), len(low), cfg.OCRMinConfidence, low)
		}
	}

	elapsed := time.Since(startTime)
	fmt.Printf("\nBatch completed in %s\n", elapsed.Round(time.Millisecond))

	return nil
}
