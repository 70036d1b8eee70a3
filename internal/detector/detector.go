package detector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// itemPattern matches one numbered index entry: a leading integer, a
// separator run (".", ")", "-", or whitespace), then the label.
var itemPattern = regexp.MustCompile(`^\s*(\d{1,4})[\.\)\-\s]+(.+?)\s*$`)

// dashReplacer folds the dash variants OCR produces into ASCII "-" before
// pattern matching.
var dashReplacer = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
)

// lineRowTolerance is the baseline distance within which two words belong to
// the same line, in points.
const lineRowTolerance = 2.0

// Detector finds the index anchor page and extracts its entries.
//
// Design decision: The Detector reads pages through document.TextSource
// rather than holding a *document.Provider. The OCR fallback for pages
// without native text already lives behind that interface, so detection
// logic stays identical for native, scanned, and cached pages, and tests
// substitute canned pages.
type Detector struct {
	hints             []string
	scanLimit         int
	continuationPages int
	minItemsPerPage   int
	minLabelLength    int
	headerFooterBand  float64
	logger            *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithHints replaces the anchor header hints.
func WithHints(hints []string) Option {
	return func(d *Detector) {
		if len(hints) > 0 {
			d.hints = hints
		}
	}
}

// New creates a Detector from the run configuration.
func New(cfg *config.Config, opts ...Option) *Detector {
	d := &Detector{
		hints:             cfg.IndexHints,
		scanLimit:         cfg.IndexScanPages,
		continuationPages: cfg.ContinuationPages,
		minItemsPerPage:   cfg.MinItemsPerPage,
		minLabelLength:    cfg.MinLabelLength,
		headerFooterBand:  config.DefaultHeaderFooterBand,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect scans src for an index anchor page and extracts its numbered
// entries. It returns the 1-based anchor page and the entries sorted by item
// number ascending. ErrIndexNotFound and ErrNoItemsExtracted are fatal; no
// partial index is returned.
func (d *Detector) Detect(ctx context.Context, src document.TextSource) (int, []*model.IndexItem, error) {
	anchor, err := d.findAnchor(ctx, src)
	if err != nil {
		return 0, nil, err
	}

	d.logger.Debug("index anchor located",
		slog.String("document", src.ID()),
		slog.Int("page", anchor))

	items, err := d.extractItems(ctx, src, anchor)
	if err != nil {
		return 0, nil, err
	}
	if len(items) == 0 {
		return 0, nil, fmt.Errorf("%w: document %s anchor page %d", ErrNoItemsExtracted, src.ID(), anchor)
	}

	items = model.FirstWins(items, func(it *model.IndexItem) int { return it.Number })
	sort.Slice(items, func(i, j int) bool { return items[i].Number < items[j].Number })

	d.logger.Debug("index entries extracted",
		slog.String("document", src.ID()),
		slog.Int("count", len(items)))

	return anchor, items, nil
}

// findAnchor returns the first page within the scan limit whose text matches
// an index header hint, case-insensitively.
func (d *Detector) findAnchor(ctx context.Context, src document.TextSource) (int, error) {
	limit := d.scanLimit
	if src.PageCount() < limit {
		limit = src.PageCount()
	}

	for page := 1; page <= limit; page++ {
		content, err := src.Page(ctx, page)
		if err != nil {
			return 0, fmt.Errorf("failed to read page %d of %s: %w", page, src.ID(), err)
		}
		upper := strings.ToUpper(content.Text)
		for _, hint := range d.hints {
			if strings.Contains(upper, strings.ToUpper(hint)) {
				return page, nil
			}
		}
	}

	return 0, fmt.Errorf("%w: document %s, first %d pages", ErrIndexNotFound, src.ID(), limit)
}

// extractItems parses numbered entries from the anchor page and from
// continuation pages while they still look like index content.
func (d *Detector) extractItems(ctx context.Context, src document.TextSource, anchor int) ([]*model.IndexItem, error) {
	var items []*model.IndexItem
	maxNumber := 0

	last := anchor + d.continuationPages
	if src.PageCount() < last {
		last = src.PageCount()
	}

	for page := anchor; page <= last; page++ {
		content, err := src.Page(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", page, src.ID(), err)
		}

		pageItems := d.parsePage(content, page, page > anchor, maxNumber)

		// A continuation page yielding too few entries means we ran off the
		// end of the index section.
		if page > anchor && len(pageItems) < d.minItemsPerPage {
			break
		}

		for _, it := range pageItems {
			if it.Number > maxNumber {
				maxNumber = it.Number
			}
		}
		items = append(items, pageItems...)
	}

	return items, nil
}

// parsePage extracts entry candidates from one page. On continuation pages a
// number below the running maximum is a numbering reset and is discarded as
// noise rather than treated as a new index.
func (d *Detector) parsePage(content *document.PageContent, page int, continuation bool, maxNumber int) []*model.IndexItem {
	var items []*model.IndexItem

	for _, ln := range pageLines(content, d.headerFooterBand) {
		text := dashReplacer.Replace(ln.text)
		m := itemPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil || number < 1 {
			continue
		}
		label := strings.TrimSpace(m[2])
		if len(label) < d.minLabelLength {
			continue
		}
		if continuation && number < maxNumber {
			d.logger.Debug("discarding numbering reset on continuation page",
				slog.Int("page", page),
				slog.Int("number", number),
				slog.Int("running_max", maxNumber))
			continue
		}

		item, err := model.NewIndexItem(number, label, page, ln.rect)
		if err != nil {
			continue
		}
		items = append(items, item)
	}

	return items
}

// line is one visual text line with its bounding box. The box is empty when
// the page carried no word geometry.
type line struct {
	text string
	rect model.Rectangle
}

// pageLines reconstructs visual lines from a page's word boxes, excluding
// lines inside the header/footer band. Running headers and page footers
// repeat entry numbers and would poison first-wins dedup. Pages without word
// geometry fall back to plain text lines with empty boxes.
func pageLines(content *document.PageContent, band float64) []line {
	if len(content.Words) == 0 {
		var lines []line
		for _, text := range strings.Split(content.Text, "\n") {
			if strings.TrimSpace(text) == "" {
				continue
			}
			lines = append(lines, line{text: text})
		}
		return lines
	}

	// Group words into rows by baseline, top of page first.
	words := make([]document.Word, len(content.Words))
	copy(words, content.Words)
	sort.SliceStable(words, func(i, j int) bool {
		if words[i].Rect.Y0 != words[j].Rect.Y0 {
			return words[i].Rect.Y0 > words[j].Rect.Y0
		}
		return words[i].Rect.X0 < words[j].Rect.X0
	})

	var rows [][]document.Word
	for _, w := range words {
		if len(rows) > 0 {
			prev := rows[len(rows)-1][0]
			if diff := prev.Rect.Y0 - w.Rect.Y0; diff < lineRowTolerance && diff > -lineRowTolerance {
				rows[len(rows)-1] = append(rows[len(rows)-1], w)
				continue
			}
		}
		rows = append(rows, []document.Word{w})
	}

	top, bottom := pageVerticalExtent(words)
	height := top - bottom

	var lines []line
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].Rect.X0 < row[j].Rect.X0 })

		rect := row[0].Rect
		parts := make([]string, 0, len(row))
		for _, w := range row {
			parts = append(parts, w.Text)
			rect = rect.Union(w.Rect)
		}

		if height > 0 {
			center := (rect.Y0 + rect.Y1) / 2
			if center > top-band*height || center < bottom+band*height {
				continue
			}
		}

		lines = append(lines, line{text: strings.Join(parts, " "), rect: rect})
	}

	return lines
}

// pageVerticalExtent returns the highest and lowest Y coordinates covered by
// the page's words.
func pageVerticalExtent(words []document.Word) (top, bottom float64) {
	top, bottom = words[0].Rect.Y1, words[0].Rect.Y0
	for _, w := range words {
		if w.Rect.Y1 > top {
			top = w.Rect.Y1
		}
		if w.Rect.Y0 < bottom {
			bottom = w.Rect.Y0
		}
	}
	return top, bottom
}
