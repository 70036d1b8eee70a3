package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// PDFReader extracts native-layer text and word geometry from one PDF.
//
// Design decision: We use github.com/ledongthuc/pdf rather than shelling out
// to a converter because it exposes per-glyph positions, which the scanner
// needs to place link rectangles over matched text. Rectangles are reported
// in the extractor's coordinate space (PDF points, origin bottom-left); all
// downstream geometry (band exclusion, rectangle dedup) only compares
// coordinates within that same space, so no flip is required.
type PDFReader struct {
	id     string
	path   string
	file   *os.File
	reader *pdf.Reader
}

// rowTolerance groups glyphs whose baselines are within this many points
// into the same text row.
const rowTolerance = 2.0

// wordGapFactor is the fraction of font size beyond which a horizontal gap
// between glyphs starts a new word.
const wordGapFactor = 0.35

// OpenPDF opens a PDF for reading. The document ID is the file's base name,
// matching how briefs are referred to in manifests and overrides.
func OpenPDF(path string) (*PDFReader, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	return &PDFReader{
		id:     filepath.Base(path),
		path:   path,
		file:   f,
		reader: r,
	}, nil
}

// Close releases the underlying file.
func (r *PDFReader) Close() error {
	return r.file.Close()
}

// ID returns the document identifier (base filename).
func (r *PDFReader) ID() string {
	return r.id
}

// Path returns the document's path on disk.
func (r *PDFReader) Path() string {
	return r.path
}

// PageCount returns the number of pages.
func (r *PDFReader) PageCount() int {
	return r.reader.NumPage()
}

// Page extracts the native text layer of the 1-based page. A page with no
// text layer yields empty content with confidence 0; the caller decides
// whether to fall back to OCR.
func (r *PDFReader) Page(_ context.Context, pageNum int) (*PageContent, error) {
	if pageNum < 1 || pageNum > r.reader.NumPage() {
		return nil, fmt.Errorf("page %d out of range [1,%d] for %s", pageNum, r.reader.NumPage(), r.id)
	}

	page := r.reader.Page(pageNum)
	if page.V.IsNull() {
		return &PageContent{Source: SourceNative}, nil
	}

	texts := page.Content().Text
	words := assembleWords(texts)
	text := joinWords(words)

	confidence := 0.0
	if len(text) > 0 {
		// Native text layers are authoritative; 0.99 leaves headroom so an
		// explicit manual transcription could outrank one if ever needed.
		confidence = 0.99
	}
	return &PageContent{
		Text:       text,
		Words:      words,
		Confidence: confidence,
		Source:     SourceNative,
	}, nil
}

// assembleWords groups per-glyph text elements into words with bounding
// boxes: glyphs are bucketed into rows by baseline, sorted left to right,
// and split on gaps wider than wordGapFactor of the font size.
func assembleWords(texts []pdf.Text) []Word {
	glyphs := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		glyphs = append(glyphs, t)
	}
	if len(glyphs) == 0 {
		return nil
	}

	rows := groupRows(glyphs)

	var words []Word
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

		var cur strings.Builder
		var rect model.Rectangle
		var lastEnd float64
		flush := func() {
			if cur.Len() > 0 {
				words = append(words, Word{Text: cur.String(), Rect: rect, Confidence: 1.0})
				cur.Reset()
			}
		}
		for _, g := range row {
			gapLimit := g.FontSize * wordGapFactor
			if gapLimit < 1 {
				gapLimit = 1
			}
			gRect := model.Rectangle{X0: g.X, Y0: g.Y, X1: g.X + g.W, Y1: g.Y + g.FontSize}
			if cur.Len() > 0 && g.X-lastEnd > gapLimit {
				flush()
			}
			if cur.Len() == 0 {
				rect = gRect
			} else {
				rect = rect.Union(gRect)
			}
			cur.WriteString(g.S)
			lastEnd = g.X + g.W
		}
		flush()
	}
	return words
}

// groupRows buckets glyphs by baseline, top of page first. PDF Y grows
// upward, so higher Y means earlier in reading order.
func groupRows(glyphs []pdf.Text) [][]pdf.Text {
	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	for _, g := range sorted {
		if n := len(rows); n > 0 {
			last := rows[n-1]
			if diff := last[0].Y - g.Y; diff < rowTolerance && diff > -rowTolerance {
				rows[n-1] = append(last, g)
				continue
			}
		}
		rows = append(rows, []pdf.Text{g})
	}
	return rows
}

// joinWords renders words back into page text, one line per row. Words are
// already in reading order; a newline starts whenever the baseline moves.
func joinWords(words []Word) string {
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	lastY := words[0].Rect.Y0
	for i, w := range words {
		if i > 0 {
			if diff := lastY - w.Rect.Y0; diff > rowTolerance || diff < -rowTolerance {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.Text)
		lastY = w.Rect.Y0
	}
	return b.String()
}
