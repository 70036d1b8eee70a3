package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/document"
)

// BatchDocument is a document the batch processor can read pages from.
// *document.PDFReader satisfies it.
type BatchDocument interface {
	document.TextSource

	// Path returns the document's filesystem path, forwarded to the OCR
	// service so it can rasterize pages itself.
	Path() string
}

// BatchStore is the persistence the batch processor resumes from and writes
// through. *database.RunDB satisfies it.
type BatchStore interface {
	document.PageStore

	// ProcessedPages returns the set of page numbers already stored for the
	// document.
	ProcessedPages(ctx context.Context, docID string) (map[int]bool, error)
}

// Recognizer is the OCR boundary. *document.OCRClient satisfies it.
type Recognizer interface {
	RecognizePage(ctx context.Context, req document.OCRRequest) (*document.PageContent, error)
}

// BatchStats summarizes one batch pass over a document.
type BatchStats struct {
	// Pages is the document's total page count.
	Pages int

	// Skipped counts pages already present in the store.
	Skipped int

	// Native counts pages served by the PDF's own text layer.
	Native int

	// Recognized counts pages sent through OCR.
	Recognized int

	// Retried counts pages re-recognized at the higher resolution.
	Retried int

	// Failed counts pages recorded as empty after recognition failed.
	Failed int
}

// BatchProcessor bulk-populates the OCR page store so interactive pipeline
// runs never wait on recognition. Documents are processed one at a time;
// within a document, page requests run concurrently under an errgroup limit.
//
// Design decision: a failed page is stored as an empty, zero-confidence
// result rather than aborting the batch. Noisy scans routinely defeat OCR on
// individual pages, and an explicit empty row makes the retry set queryable;
// a missing row would silently re-trigger work on every pass. Only failing
// to read the document at all is fatal, and that happens in the caller that
// opens it.
type BatchProcessor struct {
	// store is the resumable page store.
	store BatchStore

	// ocr performs recognition.
	ocr Recognizer

	// concurrency bounds in-flight page requests per document.
	concurrency int

	// dpi and retryDPI are the first-pass and retry resolutions.
	dpi      int
	retryDPI int

	// minConfidence gates the single higher-resolution retry.
	minConfidence float64

	// nativeThreshold is the character count above which a page's text layer
	// is trusted without OCR.
	nativeThreshold int

	// logger for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithBatchConcurrency sets the maximum number of in-flight page requests.
func WithBatchConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor over the given store and
// recognizer, taking resolutions and thresholds from the configuration.
func NewBatchProcessor(cfg *config.Config, store BatchStore, ocr Recognizer, opts ...BatchOption) *BatchProcessor {
	b := &BatchProcessor{
		store:           store,
		ocr:             ocr,
		concurrency:     cfg.BatchConcurrency,
		dpi:             cfg.OCRDPI,
		retryDPI:        cfg.OCRRetryDPI,
		minConfidence:   cfg.OCRMinConfidence,
		nativeThreshold: cfg.NativeTextThreshold,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}

	return b
}

// ProcessDocument runs one resumable pass over a document: pages already in
// the store are skipped, pages with a real text layer are stored from it,
// and the rest go through OCR with one retry at the higher resolution when
// confidence comes back low.
func (b *BatchProcessor) ProcessDocument(ctx context.Context, doc BatchDocument) (BatchStats, error) {
	stats := BatchStats{Pages: doc.PageCount()}

	done, err := b.store.ProcessedPages(ctx, doc.ID())
	if err != nil {
		return stats, err
	}

	b.logger.Info("batch pass starting",
		"document", doc.ID(),
		"pages", stats.Pages,
		"already_processed", len(done),
		"concurrency", b.concurrency,
	)
	start := time.Now()

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for pageNum := 1; pageNum <= doc.PageCount(); pageNum++ {
		if done[pageNum] {
			stats.Skipped++
			continue
		}

		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			pageStart := time.Now()
			content, outcome := b.processPage(ctx, doc, pageNum)
			elapsed := int(time.Since(pageStart).Milliseconds())
			if err := b.store.Upsert(ctx, doc.ID(), pageNum, content, elapsed); err != nil {
				return err
			}

			mu.Lock()
			switch outcome {
			case pageNative:
				stats.Native++
			case pageRecognized:
				stats.Recognized++
			case pageRetried:
				stats.Recognized++
				stats.Retried++
			case pageFailed:
				stats.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	err = g.Wait()
	b.logger.Info("batch pass complete",
		"document", doc.ID(),
		"native", stats.Native,
		"recognized", stats.Recognized,
		"retried", stats.Retried,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"elapsed", time.Since(start),
	)
	return stats, err
}

// ProcessAll processes documents sequentially, returning per-document stats
// in input order. Processing continues past documents whose pages fail;
// store errors stop the batch.
func (b *BatchProcessor) ProcessAll(ctx context.Context, docs []BatchDocument) ([]BatchStats, error) {
	results := make([]BatchStats, 0, len(docs))
	for _, doc := range docs {
		stats, err := b.ProcessDocument(ctx, doc)
		results = append(results, stats)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Page processing outcomes for stats accounting.
const (
	pageNative = iota
	pageRecognized
	pageRetried
	pageFailed
)

// processPage produces the content to store for one page. It never returns
// an error: recognition failure yields an empty zero-confidence result.
func (b *BatchProcessor) processPage(ctx context.Context, doc BatchDocument, pageNum int) (*document.PageContent, int) {
	native, err := doc.Page(ctx, pageNum)
	if err == nil && len(native.Text) >= b.nativeThreshold {
		return native, pageNative
	}
	if err != nil {
		b.logger.Debug("native text read failed",
			"document", doc.ID(),
			"page", pageNum,
			"error", err,
		)
	}

	content, err := b.ocr.RecognizePage(ctx, document.OCRRequest{
		DocumentID: doc.ID(),
		Path:       doc.Path(),
		Page:       pageNum,
		DPI:        b.dpi,
	})
	if err != nil {
		b.logger.Warn("page recognition failed, recording empty result",
			"document", doc.ID(),
			"page", pageNum,
			"error", err,
		)
		return &document.PageContent{Source: document.SourceOCR}, pageFailed
	}

	if content.Confidence >= b.minConfidence {
		return content, pageRecognized
	}

	retry, err := b.ocr.RecognizePage(ctx, document.OCRRequest{
		DocumentID: doc.ID(),
		Path:       doc.Path(),
		Page:       pageNum,
		DPI:        b.retryDPI,
	})
	if err != nil || retry.Confidence <= content.Confidence {
		// Keep the first pass; the retry did not improve on it.
		return content, pageRecognized
	}
	return retry, pageRetried
}
