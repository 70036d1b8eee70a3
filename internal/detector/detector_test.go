package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// fakeSource serves canned page text for detection tests.
type fakeSource struct {
	id    string
	pages map[int]*document.PageContent
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) PageCount() int { return len(f.pages) }

func (f *fakeSource) Page(_ context.Context, pageNum int) (*document.PageContent, error) {
	content, ok := f.pages[pageNum]
	if !ok {
		return &document.PageContent{Source: document.SourceNative}, nil
	}
	return content, nil
}

func textPage(text string) *document.PageContent {
	return &document.PageContent{Text: text, Confidence: 0.99, Source: document.SourceNative}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	t.Run("finds anchor and extracts numbered entries", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("SUPERIOR COURT OF JUSTICE\nFactum of the Moving Party"),
				2: textPage("INDEX\n1. Affidavit of J. Smith\n2. Exhibit A - Purchase Agreement\n3. Transcript of Cross-Examination"),
			},
		}

		anchor, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if anchor != 2 {
			t.Errorf("anchor = %d, want 2", anchor)
		}
		if len(items) != 3 {
			t.Fatalf("item count = %d, want 3", len(items))
		}
		if items[0].Number != 1 || items[0].Label != "Affidavit of J. Smith" {
			t.Errorf("first item = %+v", items[0])
		}
		if items[1].Label != "Exhibit A - Purchase Agreement" {
			t.Errorf("second label = %q", items[1].Label)
		}
		for _, it := range items {
			if it.Page != 2 {
				t.Errorf("item %d page = %d, want 2", it.Number, it.Page)
			}
			if it.Found || it.State != model.StateUnresolved {
				t.Errorf("item %d should start unresolved", it.Number)
			}
		}
	})

	t.Run("no anchor within scan limit fails with ErrIndexNotFound", func(t *testing.T) {
		t.Parallel()

		cfg := config.New()
		cfg.IndexScanPages = 2
		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("cover page"),
				2: textPage("certificate of service"),
				3: textPage("INDEX\n1. Affidavit of J. Smith"),
			},
		}

		_, _, err := New(cfg).Detect(context.Background(), src)
		if !errors.Is(err, ErrIndexNotFound) {
			t.Errorf("err = %v, want ErrIndexNotFound", err)
		}
	})

	t.Run("anchor with no entries fails with ErrNoItemsExtracted", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("TABLE OF CONTENTS\n\n(intentionally left blank)"),
			},
		}

		_, _, err := New(config.New()).Detect(context.Background(), src)
		if !errors.Is(err, ErrNoItemsExtracted) {
			t.Errorf("err = %v, want ErrNoItemsExtracted", err)
		}
	})

	t.Run("first occurrence of a number wins", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("INDEX\n1. Affidavit of J. Smith\n2. Exhibit A - Purchase Agreement\n3. Transcript of Cross-Examination\n3. Transcript of Cross-Examination"),
			},
		}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if len(items) != 3 {
			t.Fatalf("item count = %d, want 3 after dedup", len(items))
		}
		seen := make(map[int]bool)
		for _, it := range items {
			if seen[it.Number] {
				t.Errorf("duplicate item number %d survived dedup", it.Number)
			}
			seen[it.Number] = true
		}
	})

	t.Run("continues onto pages that still look like index content", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("INDEX\n1. Affidavit of J. Smith\n2. Exhibit A - Purchase Agreement\n3. Transcript of Cross-Examination"),
				2: textPage("4. Answers to Undertakings\n5. Refusals Chart\n6. Costs Outline"),
				3: textPage("May it please the court, the moving party submits...\n99. This paragraph number is body text"),
			},
		}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if len(items) != 6 {
			t.Fatalf("item count = %d, want 6 from two index pages", len(items))
		}
		if items[5].Number != 6 || items[5].Page != 2 {
			t.Errorf("last item = %+v, want number 6 on page 2", items[5])
		}
	})

	t.Run("numbering reset on continuation page is discarded", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("INDEX\n4. Answers to Undertakings\n5. Refusals Chart\n6. Costs Outline"),
				2: textPage("1. A different list restarts here\n2. Another restarted entry\n7. Final Order\n8. Draft Judgment\n9. Bill of Costs"),
			},
		}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		for _, it := range items {
			if it.Number < 4 {
				t.Errorf("reset entry %d should have been discarded", it.Number)
			}
		}
		if len(items) != 6 {
			t.Errorf("item count = %d, want 6", len(items))
		}
	})

	t.Run("short labels are rejected as noise", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("INDEX\n1. Affidavit of J. Smith\n2. ab\n3. Transcript of Cross-Examination"),
			},
		}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("item count = %d, want 2", len(items))
		}
		for _, it := range items {
			if it.Number == 2 {
				t.Errorf("noise entry 2 should have been rejected, got %+v", it)
			}
		}
	})

	t.Run("word geometry yields line rectangles and drops header band lines", func(t *testing.T) {
		t.Parallel()

		word := func(text string, x0, y0, x1, y1 float64) document.Word {
			return document.Word{Text: text, Rect: model.Rectangle{X0: x0, Y0: y0, X1: x1, Y1: y1}, Confidence: 0.95}
		}
		// Page spans y 0..792. "3. Repeated Footer Entry" sits in the bottom
		// 8% band and must be excluded.
		page := &document.PageContent{
			Text: "INDEX\n1. Affidavit of Smith\n2. Exhibit B\n3. Repeated Footer Entry",
			Words: []document.Word{
				word("INDEX", 250, 780, 300, 792),
				word("1.", 72, 600, 85, 612),
				word("Affidavit", 90, 600, 150, 612),
				word("of", 155, 600, 168, 612),
				word("Smith", 172, 600, 215, 612),
				word("2.", 72, 560, 85, 572),
				word("Exhibit", 90, 560, 140, 572),
				word("B-12", 145, 560, 175, 572),
				word("3.", 72, 5, 85, 17),
				word("Repeated", 90, 5, 150, 17),
				word("Footer", 155, 5, 200, 17),
				word("Entry", 205, 5, 240, 17),
			},
			Confidence: 0.95,
			Source:     document.SourceOCR,
		}
		src := &fakeSource{id: "brief.pdf", pages: map[int]*document.PageContent{1: page}}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("item count = %d, want 2 (footer line excluded)", len(items))
		}
		first := items[0]
		if first.Rect.IsEmpty() {
			t.Error("expected a line rectangle from word geometry")
		}
		if first.Rect.X0 != 72 || first.Rect.X1 != 215 {
			t.Errorf("line rect = %+v, want x 72..215", first.Rect)
		}
	})

	t.Run("en dash separators are normalized before matching", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			id: "brief.pdf",
			pages: map[int]*document.PageContent{
				1: textPage("INDEX\n1 – Affidavit of J. Smith\n2 — Exhibit A"),
			},
		}

		_, items, err := New(config.New()).Detect(context.Background(), src)
		if err != nil {
			t.Fatalf("detect failed: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("item count = %d, want 2", len(items))
		}
	})
}
