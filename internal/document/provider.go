package document

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// Word is one recognized word on a page with its bounding box and the
// recognition confidence. Native-text words carry confidence 1.0.
type Word struct {
	Text       string          `json:"text"`
	Rect       model.Rectangle `json:"rect"`
	Confidence float64         `json:"confidence"`
}

// Page source tags recorded alongside extracted text.
const (
	// SourceNative marks text read from the PDF's text layer.
	SourceNative = "native"

	// SourceOCR marks text produced by the OCR service.
	SourceOCR = "ocr"

	// SourceCache marks text served from the persistent page store.
	SourceCache = "cache"
)

// PageContent is everything known about one page's text.
type PageContent struct {
	// Text is the page's extracted text, reading order best-effort.
	Text string `json:"text"`

	// Words are the word-level boxes, when available. OCR always produces
	// them; native extraction produces them from the text layer geometry.
	Words []Word `json:"words,omitempty"`

	// Confidence is the page-level recognition confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Source tags where the text came from.
	Source string `json:"source"`
}

// TextSource is the read side of a page-text provider.
//
// Design decision: detector, scanner, and scorer depend on this interface
// rather than on Provider so tests can substitute a fixture with canned page
// text and word boxes without touching a PDF or an OCR service.
type TextSource interface {
	// ID returns the document's identifier.
	ID() string

	// PageCount returns the document's page count.
	PageCount() int

	// Page returns the content of the 1-based page.
	Page(ctx context.Context, pageNum int) (*PageContent, error)
}

// PageStore is the persistence boundary the Provider writes through.
// Implemented by the sqlite store in internal/database.
type PageStore interface {
	// Get returns the stored content for (docID, pageNum), or nil when the
	// page has not been processed yet.
	Get(ctx context.Context, docID string, pageNum int) (*PageContent, error)

	// Upsert stores the content for (docID, pageNum), replacing any prior
	// result for the same key.
	Upsert(ctx context.Context, docID string, pageNum int, content *PageContent, durationMS int) error
}

// Provider serves page text for one document, choosing the cheapest source
// that works: the persistent store, then the PDF's native text layer, then
// the OCR service. Pages that fall through every source yield empty content
// rather than an error; noisy scans are expected input, not failures.
type Provider struct {
	reader *PDFReader
	ocr    *OCRClient
	store  PageStore
	logger *slog.Logger

	// nativeThreshold is the minimum character count for a page to count as
	// having a real text layer.
	nativeThreshold int
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithOCRClient enables the OCR fallback.
func WithOCRClient(client *OCRClient) ProviderOption {
	return func(p *Provider) {
		p.ocr = client
	}
}

// WithPageStore enables read-through caching of page results.
func WithPageStore(store PageStore) ProviderOption {
	return func(p *Provider) {
		p.store = store
	}
}

// WithNativeThreshold overrides the native text-layer threshold.
func WithNativeThreshold(chars int) ProviderOption {
	return func(p *Provider) {
		if chars > 0 {
			p.nativeThreshold = chars
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a Provider over an opened PDFReader.
func NewProvider(reader *PDFReader, opts ...ProviderOption) *Provider {
	p := &Provider{
		reader:          reader,
		nativeThreshold: 50,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// ID returns the document's identifier.
func (p *Provider) ID() string {
	return p.reader.ID()
}

// PageCount returns the document's page count.
func (p *Provider) PageCount() int {
	return p.reader.PageCount()
}

// Page returns the content of the 1-based page, consulting the store, the
// native text layer, and the OCR service in that order. The chosen result is
// written back to the store so repeated pipeline passes and crashed batch
// jobs never reprocess a completed page.
func (p *Provider) Page(ctx context.Context, pageNum int) (*PageContent, error) {
	if pageNum < 1 || pageNum > p.reader.PageCount() {
		return nil, fmt.Errorf("page %d out of range [1,%d] for %s", pageNum, p.reader.PageCount(), p.reader.ID())
	}

	if p.store != nil {
		cached, err := p.store.Get(ctx, p.reader.ID(), pageNum)
		if err != nil {
			return nil, fmt.Errorf("page store lookup failed: %w", err)
		}
		if cached != nil {
			cached.Source = SourceCache
			return cached, nil
		}
	}

	content, err := p.reader.Page(ctx, pageNum)
	if err != nil {
		return nil, err
	}
	if len(content.Text) < p.nativeThreshold && p.ocr != nil {
		ocrContent, ocrErr := p.ocr.RecognizePage(ctx, OCRRequest{
			DocumentID: p.reader.ID(),
			Path:       p.reader.Path(),
			Page:       pageNum,
		})
		if ocrErr != nil {
			// OCR trouble degrades to whatever the text layer had. The page
			// is recorded either way so retries are explicit, not implicit.
			p.logger.Warn("ocr fallback failed",
				"document", p.reader.ID(),
				"page", pageNum,
				"error", ocrErr,
			)
		} else {
			content = ocrContent
		}
	}

	if p.store != nil {
		if err := p.store.Upsert(ctx, p.reader.ID(), pageNum, content, 0); err != nil {
			p.logger.Warn("page store write failed",
				"document", p.reader.ID(),
				"page", pageNum,
				"error", err,
			)
		}
	}
	return content, nil
}
