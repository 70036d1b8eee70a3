package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/document"
)

// fakeBatchDoc is an in-memory BatchDocument whose pages can be made to
// fail native extraction.
type fakeBatchDoc struct {
	id       string
	path     string
	pages    map[int]*document.PageContent
	errPages map[int]bool
	count    int
}

func (f *fakeBatchDoc) ID() string     { return f.id }
func (f *fakeBatchDoc) Path() string   { return f.path }
func (f *fakeBatchDoc) PageCount() int { return f.count }

func (f *fakeBatchDoc) Page(_ context.Context, pageNum int) (*document.PageContent, error) {
	if f.errPages[pageNum] {
		return nil, errors.New("unreadable page")
	}
	if content, ok := f.pages[pageNum]; ok {
		return content, nil
	}
	return &document.PageContent{Source: document.SourceNative}, nil
}

// fakeBatchStore is a concurrency-safe in-memory BatchStore.
type fakeBatchStore struct {
	mu        sync.Mutex
	pages     map[string]*document.PageContent
	durations map[string]int
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{
		pages:     make(map[string]*document.PageContent),
		durations: make(map[string]int),
	}
}

func storeKey(docID string, pageNum int) string {
	return fmt.Sprintf("%s:%d", docID, pageNum)
}

func (s *fakeBatchStore) Get(_ context.Context, docID string, pageNum int) (*document.PageContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[storeKey(docID, pageNum)], nil
}

func (s *fakeBatchStore) Upsert(_ context.Context, docID string, pageNum int, content *document.PageContent, durationMS int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[storeKey(docID, pageNum)] = content
	s.durations[storeKey(docID, pageNum)] = durationMS
	return nil
}

func (s *fakeBatchStore) ProcessedPages(_ context.Context, docID string) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[int]bool)
	for key := range s.pages {
		parts := strings.SplitN(key, ":", 2)
		if parts[0] != docID {
			continue
		}
		page, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, err
		}
		done[page] = true
	}
	return done, nil
}

// fakeRecognizer serves canned results keyed by (page, dpi) and records
// every request. A non-zero delay makes each recognition take real time.
type fakeRecognizer struct {
	mu       sync.Mutex
	results  map[string]*document.PageContent
	failures map[int]bool
	requests []document.OCRRequest
	delay    time.Duration
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{
		results:  make(map[string]*document.PageContent),
		failures: make(map[int]bool),
	}
}

func (r *fakeRecognizer) put(pageNum, dpi int, confidence float64, text string) {
	r.results[fmt.Sprintf("%d@%d", pageNum, dpi)] = &document.PageContent{
		Text:       text,
		Confidence: confidence,
		Source:     document.SourceOCR,
	}
}

func (r *fakeRecognizer) RecognizePage(_ context.Context, req document.OCRRequest) (*document.PageContent, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.failures[req.Page] {
		return nil, document.ErrOCRUnavailable
	}
	if content, ok := r.results[fmt.Sprintf("%d@%d", req.Page, req.DPI)]; ok {
		return content, nil
	}
	return &document.PageContent{Text: "recognized", Confidence: 0.95, Source: document.SourceOCR}, nil
}

func (r *fakeRecognizer) requestCount(pageNum int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.requests {
		if req.Page == pageNum {
			n++
		}
	}
	return n
}

func TestBatchProcessor(t *testing.T) {
	t.Parallel()

	longNative := strings.Repeat("native text layer content ", 4)

	t.Run("native fast path skips recognition", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{
			id:    "brief.pdf",
			path:  "/tmp/brief.pdf",
			count: 1,
			pages: map[int]*document.PageContent{
				1: {Text: longNative, Confidence: 1.0, Source: document.SourceNative},
			},
		}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if stats.Native != 1 || stats.Recognized != 0 {
			t.Errorf("stats = %+v, want 1 native page", stats)
		}
		if len(ocr.requests) != 0 {
			t.Errorf("recognizer called %d times, want 0", len(ocr.requests))
		}
		stored, _ := store.Get(context.Background(), "brief.pdf", 1)
		if stored == nil || stored.Source != document.SourceNative {
			t.Errorf("stored page = %+v, want native content", stored)
		}
	})

	t.Run("short text layer falls through to recognition", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{
			id:    "scan.pdf",
			path:  "/tmp/scan.pdf",
			count: 1,
			pages: map[int]*document.PageContent{
				1: {Text: "ii", Confidence: 1.0, Source: document.SourceNative},
			},
		}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()
		ocr.put(1, config.DefaultOCRDPI, 0.92, "recognized body")

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if stats.Recognized != 1 || stats.Retried != 0 {
			t.Errorf("stats = %+v, want 1 recognized page", stats)
		}
		stored, _ := store.Get(context.Background(), "scan.pdf", 1)
		if stored == nil || stored.Text != "recognized body" {
			t.Errorf("stored page = %+v, want recognized text", stored)
		}
	})

	t.Run("low confidence triggers one retry at higher resolution", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{id: "scan.pdf", path: "/tmp/scan.pdf", count: 1}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()
		ocr.put(1, config.DefaultOCRDPI, 0.40, "blurry")
		ocr.put(1, config.DefaultOCRRetryDPI, 0.88, "sharper")

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if stats.Retried != 1 || stats.Recognized != 1 {
			t.Errorf("stats = %+v, want 1 retried page", stats)
		}
		if got := ocr.requestCount(1); got != 2 {
			t.Errorf("recognizer called %d times for page 1, want 2", got)
		}
		stored, _ := store.Get(context.Background(), "scan.pdf", 1)
		if stored == nil || stored.Text != "sharper" {
			t.Errorf("stored page = %+v, want the retry result", stored)
		}
	})

	t.Run("retry that does not improve keeps the first pass", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{id: "scan.pdf", path: "/tmp/scan.pdf", count: 1}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()
		ocr.put(1, config.DefaultOCRDPI, 0.40, "first pass")
		ocr.put(1, config.DefaultOCRRetryDPI, 0.30, "worse")

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if stats.Retried != 0 || stats.Recognized != 1 {
			t.Errorf("stats = %+v, want first pass kept", stats)
		}
		stored, _ := store.Get(context.Background(), "scan.pdf", 1)
		if stored == nil || stored.Text != "first pass" {
			t.Errorf("stored page = %+v, want the first pass", stored)
		}
	})

	t.Run("failed page is recorded as empty result", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{id: "scan.pdf", path: "/tmp/scan.pdf", count: 2}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()
		ocr.failures[1] = true
		ocr.put(2, config.DefaultOCRDPI, 0.95, "fine")

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("per-page failure must not abort the batch: %v", err)
		}

		if stats.Failed != 1 || stats.Recognized != 1 {
			t.Errorf("stats = %+v, want 1 failed and 1 recognized", stats)
		}
		stored, _ := store.Get(context.Background(), "scan.pdf", 1)
		if stored == nil || stored.Text != "" || stored.Confidence != 0 {
			t.Errorf("stored page = %+v, want empty zero-confidence row", stored)
		}
	})

	t.Run("resumes past already-processed pages", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{id: "scan.pdf", path: "/tmp/scan.pdf", count: 3}
		store := newFakeBatchStore()
		for _, page := range []int{1, 2} {
			if err := store.Upsert(context.Background(), "scan.pdf", page,
				&document.PageContent{Text: "done", Confidence: 0.9, Source: document.SourceOCR}, 0); err != nil {
				t.Fatal(err)
			}
		}
		ocr := newFakeRecognizer()

		stats, err := NewBatchProcessor(config.New(), store, ocr).ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if stats.Skipped != 2 {
			t.Errorf("skipped = %d, want 2", stats.Skipped)
		}
		if got := ocr.requestCount(1) + ocr.requestCount(2); got != 0 {
			t.Errorf("recognizer called for processed pages %d times", got)
		}
		if got := ocr.requestCount(3); got != 1 {
			t.Errorf("recognizer called %d times for page 3, want 1", got)
		}
	})

	t.Run("stores per-page timing rather than batch-cumulative", func(t *testing.T) {
		t.Parallel()

		doc := &fakeBatchDoc{id: "scan.pdf", path: "/tmp/scan.pdf", count: 3}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()
		ocr.delay = 100 * time.Millisecond

		_, err := NewBatchProcessor(config.New(), store, ocr, WithBatchConcurrency(1)).
			ProcessDocument(context.Background(), doc)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		// With one page in flight at a time, a cumulative clock would record
		// the third page at three recognitions' worth of elapsed time.
		for page := 1; page <= 3; page++ {
			got := store.durations[storeKey("scan.pdf", page)]
			if got < 100 || got >= 250 {
				t.Errorf("page %d duration = %dms, want roughly one recognition", page, got)
			}
		}
	})

	t.Run("processes documents sequentially with per-document stats", func(t *testing.T) {
		t.Parallel()

		docs := []BatchDocument{
			&fakeBatchDoc{id: "a.pdf", path: "/tmp/a.pdf", count: 2},
			&fakeBatchDoc{id: "b.pdf", path: "/tmp/b.pdf", count: 1},
		}
		store := newFakeBatchStore()
		ocr := newFakeRecognizer()

		results, err := NewBatchProcessor(config.New(), store, ocr, WithBatchConcurrency(2)).
			ProcessAll(context.Background(), docs)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		if len(results) != 2 || results[0].Pages != 2 || results[1].Pages != 1 {
			t.Errorf("results = %+v, want per-document stats in order", results)
		}
	})
}
