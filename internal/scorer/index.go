package scorer

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperlinklaw/recordlink/internal/document"
)

// markerPattern matches the explicit *T<n> destination markers planted in
// prepared records.
var markerPattern = regexp.MustCompile(`(?i)\*t(\d{1,3})\b`)

// TargetIndex is the per-page normalized text of the target record, built
// once per run and read-only thereafter. No component mutates it; scoring
// determinism depends on every lookup seeing the same text.
type TargetIndex struct {
	docID string
	pages int

	// text maps 1-based page number to its normalized full text.
	text map[int]string

	// topText maps 1-based page number to the normalized text of the page's
	// top band, where a tab heading counts as a section start.
	topText map[int]string

	// markers maps a tab number to the first page carrying its *T marker.
	markers map[int]int
}

// BuildIndex reads every page of the target record and returns its index.
// band is the fraction of page height, from the top, treated as the heading
// region.
func BuildIndex(ctx context.Context, src document.TextSource, band float64) (*TargetIndex, error) {
	idx := &TargetIndex{
		docID:   src.ID(),
		pages:   src.PageCount(),
		text:    make(map[int]string, src.PageCount()),
		topText: make(map[int]string, src.PageCount()),
		markers: make(map[int]int),
	}

	for page := 1; page <= src.PageCount(); page++ {
		content, err := src.Page(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to index page %d of %s: %w", page, src.ID(), err)
		}

		idx.text[page] = normalizeText(content.Text)
		idx.topText[page] = normalizeText(topBandText(content, band))

		// First marker page wins, matching first-wins everywhere else.
		for _, m := range markerPattern.FindAllStringSubmatch(content.Text, -1) {
			no, err := strconv.Atoi(m[1])
			if err != nil || no < 1 {
				continue
			}
			if _, seen := idx.markers[no]; !seen {
				idx.markers[no] = page
			}
		}
	}

	return idx, nil
}

// DocID returns the indexed record's identifier.
func (idx *TargetIndex) DocID() string { return idx.docID }

// Pages returns the indexed record's page count.
func (idx *TargetIndex) Pages() int { return idx.pages }

// Text returns page pageNum's normalized full text.
func (idx *TargetIndex) Text(pageNum int) string { return idx.text[pageNum] }

// TopText returns the normalized text of page pageNum's heading band.
func (idx *TargetIndex) TopText(pageNum int) string { return idx.topText[pageNum] }

// MarkerPage returns the first page carrying marker *T<no>, or 0.
func (idx *TargetIndex) MarkerPage(no int) int { return idx.markers[no] }

// normalizeText folds compatibility forms (ligatures, full-width digits OCR
// sometimes emits), lowercases, and collapses whitespace runs to single
// spaces.
func normalizeText(text string) string {
	folded := norm.NFKC.String(text)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// topBandText returns the text physically inside the page's top band. Word
// geometry gives the exact region; without it the leading fraction of the
// page's lines approximates it.
func topBandText(content *document.PageContent, band float64) string {
	if band <= 0 || band >= 1 {
		return content.Text
	}

	if len(content.Words) == 0 {
		lines := strings.Split(content.Text, "\n")
		keep := int(float64(len(lines)) * band)
		if keep < 1 {
			keep = 1
		}
		if keep > len(lines) {
			keep = len(lines)
		}
		return strings.Join(lines[:keep], "\n")
	}

	top, bottom := content.Words[0].Rect.Y1, content.Words[0].Rect.Y0
	for _, w := range content.Words {
		if w.Rect.Y1 > top {
			top = w.Rect.Y1
		}
		if w.Rect.Y0 < bottom {
			bottom = w.Rect.Y0
		}
	}
	cutoff := top - (top-bottom)*band

	type placed struct {
		text string
		y, x float64
	}
	var kept []placed
	for _, w := range content.Words {
		if (w.Rect.Y0+w.Rect.Y1)/2 >= cutoff {
			kept = append(kept, placed{text: w.Text, y: w.Rect.Y0, x: w.Rect.X0})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].y != kept[j].y {
			return kept[i].y > kept[j].y
		}
		return kept[i].x < kept[j].x
	})

	parts := make([]string, 0, len(kept))
	for _, p := range kept {
		parts = append(parts, p.text)
	}
	return strings.Join(parts, " ")
}
