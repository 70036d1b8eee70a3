package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RunDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, "recordlink.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		if _, err := Open(filepath.Join(t.TempDir(), "missing"), opts); err == nil {
			t.Error("expected error for missing database")
		}
	})
}

// TestPageStore tests page upsert, lookup, and resume queries.
func TestPageStore(t *testing.T) {
	t.Parallel()

	t.Run("get returns nil for unprocessed page", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)

		content, err := db.Get(context.Background(), "brief-a.pdf", 1)
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if content != nil {
			t.Errorf("expected nil for unprocessed page, got %+v", content)
		}
	})

	t.Run("upsert then get round-trips content", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		in := &document.PageContent{
			Text: "INDEX\n1. Affidavit of Smith 12",
			Words: []document.Word{
				{Text: "INDEX", Rect: model.Rectangle{X0: 72, Y0: 700, X1: 120, Y1: 714}, Confidence: 0.97},
			},
			Confidence: 0.94,
			Source:     document.SourceOCR,
		}
		if err := db.Upsert(ctx, "brief-a.pdf", 3, in, 850); err != nil {
			t.Fatalf("failed to upsert page: %v", err)
		}

		got, err := db.Get(ctx, "brief-a.pdf", 3)
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if got == nil {
			t.Fatal("expected stored page, got nil")
		}
		if got.Text != in.Text {
			t.Errorf("text = %q, want %q", got.Text, in.Text)
		}
		if got.Confidence != in.Confidence {
			t.Errorf("confidence = %v, want %v", got.Confidence, in.Confidence)
		}
		if got.Source != document.SourceOCR {
			t.Errorf("source = %q, want %q", got.Source, document.SourceOCR)
		}
		if len(got.Words) != 1 || got.Words[0].Text != "INDEX" {
			t.Errorf("words = %+v, want one INDEX word", got.Words)
		}
	})

	t.Run("upsert replaces prior result for same key", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		first := &document.PageContent{Text: "blurry", Confidence: 0.41, Source: document.SourceOCR}
		if err := db.Upsert(ctx, "record.pdf", 7, first, 600); err != nil {
			t.Fatalf("failed to upsert page: %v", err)
		}

		retry := &document.PageContent{Text: "Exhibit A - Contract", Confidence: 0.88, Source: document.SourceOCR}
		if err := db.Upsert(ctx, "record.pdf", 7, retry, 1400); err != nil {
			t.Fatalf("failed to upsert retry: %v", err)
		}

		got, err := db.Get(ctx, "record.pdf", 7)
		if err != nil {
			t.Fatalf("failed to get page: %v", err)
		}
		if got.Text != retry.Text || got.Confidence != retry.Confidence {
			t.Errorf("got %+v, want retry result", got)
		}
	})

	t.Run("processed pages reports stored page numbers", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		for _, page := range []int{1, 2, 5} {
			content := &document.PageContent{Text: "text", Confidence: 0.9, Source: document.SourceNative}
			if err := db.Upsert(ctx, "brief-b.pdf", page, content, 10); err != nil {
				t.Fatalf("failed to upsert page %d: %v", page, err)
			}
		}

		pages, err := db.ProcessedPages(ctx, "brief-b.pdf")
		if err != nil {
			t.Fatalf("failed to query processed pages: %v", err)
		}
		if len(pages) != 3 {
			t.Errorf("processed count = %d, want 3", len(pages))
		}
		for _, page := range []int{1, 2, 5} {
			if !pages[page] {
				t.Errorf("page %d should be processed", page)
			}
		}
		if pages[3] {
			t.Error("page 3 should not be processed")
		}
	})

	t.Run("low confidence pages orders candidates ascending", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		confidences := map[int]float64{1: 0.99, 2: 0.40, 3: 0.80, 4: 0.61}
		for page, conf := range confidences {
			content := &document.PageContent{Text: "text", Confidence: conf, Source: document.SourceOCR}
			if err := db.Upsert(ctx, "record.pdf", page, content, 10); err != nil {
				t.Fatalf("failed to upsert page %d: %v", page, err)
			}
		}

		pages, err := db.LowConfidencePages(ctx, "record.pdf", 0.65)
		if err != nil {
			t.Fatalf("failed to query low-confidence pages: %v", err)
		}
		if len(pages) != 2 || pages[0] != 2 || pages[1] != 4 {
			t.Errorf("pages = %v, want [2 4]", pages)
		}
	})
}

// TestRunReports tests run persistence and history queries.
func TestRunReports(t *testing.T) {
	t.Parallel()

	newRunFixture := func(target string) *model.Run {
		run := model.NewRun()
		run.TargetRecord = model.DocumentInfo{ID: target, Path: "/tmp/" + target, Pages: 120}
		run.Validation = &model.ValidationReport{
			TotalDetected: 14,
			AutoLinked:    11,
			NeedsReview:   3,
			LinksPlaced:   11,
		}
		return run
	}

	t.Run("save then get latest round-trips the run", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		run := newRunFixture("record.pdf")
		if err := db.SaveRunReport(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		got, err := db.GetLatestRun(ctx, "record.pdf")
		if err != nil {
			t.Fatalf("failed to get latest run: %v", err)
		}
		if got == nil {
			t.Fatal("expected stored run, got nil")
		}
		if got.ID != run.ID {
			t.Errorf("run id = %q, want %q", got.ID, run.ID)
		}
		if got.Validation == nil || got.Validation.TotalDetected != 14 {
			t.Errorf("validation = %+v, want total detected 14", got.Validation)
		}
	})

	t.Run("get latest returns nil for unknown target", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)

		got, err := db.GetLatestRun(context.Background(), "nope.pdf")
		if err != nil {
			t.Fatalf("failed to get latest run: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("get run by id", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		run := newRunFixture("record.pdf")
		if err := db.SaveRunReport(ctx, run); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		got, err := db.GetRunByID(ctx, run.ID)
		if err != nil {
			t.Fatalf("failed to get run by id: %v", err)
		}
		if got == nil || got.ID != run.ID {
			t.Fatalf("got %+v, want run %s", got, run.ID)
		}
	})

	t.Run("list runs returns metadata with summary", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		ctx := context.Background()

		for range 2 {
			if err := db.SaveRunReport(ctx, newRunFixture("record.pdf")); err != nil {
				t.Fatalf("failed to save run: %v", err)
			}
		}

		runs, err := db.ListRuns(ctx, "record.pdf")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("run count = %d, want 2", len(runs))
		}
		if runs[0].LinkSummary["auto_linked"] != 11 {
			t.Errorf("auto_linked = %d, want 11", runs[0].LinkSummary["auto_linked"])
		}
	})
}
