package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// rectDedupTolerance is the origin distance, in points, under which two
// located rectangles count as the same occurrence.
const rectDedupTolerance = 1.0

// titleCaser produces the Title-Case needle variation.
var titleCaser = cases.Title(language.English)

// Scanner applies the typed mention patterns to every page of a brief and
// produces located References.
type Scanner struct {
	patterns      []Pattern
	snippetWindow int
	logger        *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPatterns replaces the built-in pattern table.
func WithPatterns(patterns []Pattern) Option {
	return func(s *Scanner) {
		if len(patterns) > 0 {
			s.patterns = patterns
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New creates a Scanner from the run configuration.
func New(cfg *config.Config, opts ...Option) *Scanner {
	s := &Scanner{
		patterns:      DefaultPatterns(),
		snippetWindow: cfg.SnippetWindow,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	sort.SliceStable(s.patterns, func(i, j int) bool { return s.patterns[i].Priority < s.patterns[j].Priority })
	return s
}

// Scan finds every typed mention in src. References are emitted in page
// order, then pattern order, then match offset order, so repeated scans of
// the same document produce an identical list. Mentions whose text cannot be
// located on the page are dropped.
func (s *Scanner) Scan(ctx context.Context, src document.TextSource) ([]*model.Reference, error) {
	var refs []*model.Reference
	dropped := 0

	for page := 1; page <= src.PageCount(); page++ {
		content, err := src.Page(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", page, src.ID(), err)
		}
		if content.Text == "" {
			continue
		}

		for _, pat := range s.patterns {
			for _, loc := range pat.Pattern.FindAllStringSubmatchIndex(content.Text, -1) {
				full := content.Text[loc[0]:loc[1]]
				value := full
				if len(loc) > 2 && loc[2] >= 0 {
					value = content.Text[loc[2]:loc[3]]
				}
				value = normalizeValue(pat.Type, value)

				// Column headings like "Exhibit No" match the exhibit
				// pattern but cite nothing.
				if pat.Type == model.RefExhibit && strings.EqualFold(value, "No") {
					continue
				}

				rects := locateRects(content.Words, needle(pat.Type, value, full))
				if len(rects) == 0 {
					dropped++
					continue
				}

				snippet := contextSnippet(content.Text, loc[0], s.snippetWindow)
				ref, err := model.NewReference(src.ID(), page, pat.Type, value, snippet, rects)
				if err != nil {
					return nil, fmt.Errorf("failed to build reference on page %d of %s: %w", page, src.ID(), err)
				}
				refs = append(refs, ref)
			}
		}
	}

	s.logger.Debug("mention scan complete",
		slog.String("document", src.ID()),
		slog.Int("references", len(refs)),
		slog.Int("unlocatable_dropped", dropped))

	return refs, nil
}

// locateRects finds the on-page rectangles of the needle text, trying case
// variations in a fixed order and accepting the first variation that yields
// any rectangle. Accepting the first hit keeps the result deterministic
// instead of accumulating near-duplicates from every variation.
func locateRects(words []document.Word, needle string) []model.Rectangle {
	if len(words) == 0 {
		return nil
	}

	variations := []string{
		needle,
		strings.ToLower(needle),
		strings.ToUpper(needle),
		titleCaser.String(needle),
	}

	for _, variation := range variations {
		if rects := findOccurrences(words, variation); len(rects) > 0 {
			return dedupeRects(rects)
		}
	}
	return nil
}

// findOccurrences matches the needle's tokens against consecutive words and
// returns one union rectangle per occurrence. Word text is compared with
// surrounding punctuation stripped, since "Tab 3," still cites Tab 3.
func findOccurrences(words []document.Word, needle string) []model.Rectangle {
	tokens := strings.Fields(needle)
	if len(tokens) == 0 {
		return nil
	}

	const punctCutset = ".,;:()[]\"'"

	var rects []model.Rectangle
	for i := 0; i+len(tokens) <= len(words); i++ {
		matched := true
		for j, token := range tokens {
			if strings.Trim(words[i+j].Text, punctCutset) != strings.Trim(token, punctCutset) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		rect := words[i].Rect
		for j := 1; j < len(tokens); j++ {
			rect = rect.Union(words[i+j].Rect)
		}
		rects = append(rects, rect)
	}
	return rects
}

// dedupeRects drops rectangles whose origin lies within the tolerance of an
// already-kept rectangle, preserving encounter order.
func dedupeRects(rects []model.Rectangle) []model.Rectangle {
	var unique []model.Rectangle
	for _, r := range rects {
		duplicate := false
		for _, u := range unique {
			if r.SameOrigin(u, rectDedupTolerance) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, r)
		}
	}
	return unique
}

// contextSnippet returns the text surrounding the match start, bounded by
// the window on each side and trimmed of surrounding whitespace. Window
// edges are widened to rune boundaries so a multi-byte character is never
// split into invalid UTF-8.
func contextSnippet(text string, matchIndex, window int) string {
	start := matchIndex - window
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := matchIndex + window
	if end > len(text) {
		end = len(text)
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return strings.TrimSpace(text[start:end])
}
