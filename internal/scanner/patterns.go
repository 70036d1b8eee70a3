package scanner

import (
	"regexp"
	"strings"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// Pattern is one typed mention rule: its regular expression, the reference
// type it produces, and its priority within the scan order. Lower priority
// runs first, so overlapping matches are attributed to the more specific
// pattern deterministically.
//
// Design decision: The pattern table is injected into the Scanner rather
// than kept as package-level state. Tests substitute a reduced table, and a
// corpus with unusual citation conventions can extend it without rebuilding.
type Pattern struct {
	// Type is the reference type produced by matches.
	Type model.RefType

	// Pattern is the compiled expression. The first capture group, when
	// present, is the normalized reference value; otherwise the whole match.
	Pattern *regexp.Regexp

	// Priority orders pattern application, lower first.
	Priority int
}

// DefaultPatterns returns the built-in mention rules in scan order.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Type: model.RefExhibit,
			// "Exhibit No" is a column heading, not a citation. RE2 has no
			// lookahead; the scanner rejects the value "No" after matching.
			Pattern:  regexp.MustCompile(`(?i)\bExhibit\s+([A-Za-z]{1,3}(?:-\d+)?|\d+)\b`),
			Priority: 0,
		},
		{
			Type:     model.RefTab,
			Pattern:  regexp.MustCompile(`(?i)\bTab\s+(\d{1,3})\b`),
			Priority: 1,
		},
		{
			Type:     model.RefSchedule,
			Pattern:  regexp.MustCompile(`(?i)\bSchedule\s+([A-Za-z0-9]{1,3})\b`),
			Priority: 2,
		},
		{
			Type: model.RefAffidavit,
			// The name must stay case-sensitive: capitalized words delimit
			// where the deponent's name ends and prose resumes.
			Pattern:  regexp.MustCompile(`\b[Aa]ffidavit\s+of\s+([A-Z][A-Za-z.]*(?:\s+[A-Z][A-Za-z.]*)+)(?:,?\s+dated\s+[A-Za-z]+\s+\d{1,2},\s+\d{4})?`),
			Priority: 3,
		},
		{
			Type:     model.RefUndertaking,
			Pattern:  regexp.MustCompile(`(?i)\bundertakings?\b`),
			Priority: 4,
		},
		{
			Type:     model.RefRefusal,
			Pattern:  regexp.MustCompile(`(?i)\brefusals?\b`),
			Priority: 5,
		},
		{
			Type:     model.RefUnderAdvisement,
			Pattern:  regexp.MustCompile(`(?i)\bunder advisement\b`),
			Priority: 6,
		},
		{
			Type:     model.RefDirectCite,
			Pattern:  regexp.MustCompile(`(?i)\b(?:TR|Trial\s+Record)\s*(?:p\.|pp\.|page|pages)?\s*(\d{1,4})\b`),
			Priority: 7,
		},
	}
}

// needle returns the search string used to locate a match's rectangles on
// the page. Typed citations rebuild a canonical "<Keyword> <value>" form so
// case variations stay predictable; everything else searches for the raw
// matched text.
func needle(typ model.RefType, value, fullMatch string) string {
	switch typ {
	case model.RefExhibit:
		return "Exhibit " + value
	case model.RefTab:
		return "Tab " + value
	case model.RefSchedule:
		return "Schedule " + value
	default:
		return fullMatch
	}
}

// normalizeValue canonicalizes a captured reference value per type. Section
// terms are lowercased; citation designators keep their case as written.
func normalizeValue(typ model.RefType, value string) string {
	switch typ {
	case model.RefUndertaking, model.RefRefusal, model.RefUnderAdvisement:
		return strings.ToLower(value)
	default:
		return strings.TrimSpace(value)
	}
}
