package scorer

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// Confidence tiers. The strict ordering matters more than the values: exact
// phrase matches must always outrank token co-occurrence, which must always
// outrank thematic section matches.
const (
	exactConfidence   = 1.0
	tokenAffConfidence = 0.90
	tokenExhConfidence = 0.85
	sectionConfidence  = 0.80
)

// maxCandidates is how many scored destinations are retained per reference.
const maxCandidates = 3

// Scorer ranks target-record pages for each reference against a prebuilt
// TargetIndex.
type Scorer struct {
	index  *TargetIndex
	logger *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = logger
	}
}

// New creates a Scorer over the given target index.
func New(index *TargetIndex, opts ...Option) *Scorer {
	s := &Scorer{
		index:  index,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScoreAll scores every reference in place: candidates are attached and each
// reference moves to the Scored state. References are processed in slice
// order with no interleaving, so the result is reproducible.
func (s *Scorer) ScoreAll(refs []*model.Reference) {
	for _, ref := range refs {
		ref.SetScored(s.Score(ref))
	}
	s.logger.Debug("scoring complete", slog.Int("references", len(refs)))
}

// Score returns the top destination candidates for one reference, fully
// ordered by (confidence desc, page asc, method priority asc).
func (s *Scorer) Score(ref *model.Reference) []model.DestinationCandidate {
	var candidates []model.DestinationCandidate

	value := strings.ToLower(ref.Value)

	// A direct citation names its destination page outright; the only
	// candidate is the cited page, if it exists.
	if ref.Type == model.RefDirectCite {
		if cited, err := strconv.Atoi(value); err == nil && cited >= 1 && cited <= s.index.Pages() {
			candidates = append(candidates, model.DestinationCandidate{
				Page:       cited,
				Confidence: exactConfidence,
				Method:     model.MethodDirectCite,
			})
		}
		return candidates
	}

	for page := 1; page <= s.index.Pages(); page++ {
		confidence, method := s.pageScore(ref.Type, value, s.index.Text(page))
		if confidence > 0 {
			candidates = append(candidates, model.DestinationCandidate{
				Page:       page,
				Confidence: confidence,
				Method:     method,
			})
		}
	}

	model.SortCandidates(candidates)
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates
}

// pageScore applies the per-type confidence rules to one page's normalized
// text. It returns 0 and an empty method when the page is not a plausible
// destination.
func (s *Scorer) pageScore(typ model.RefType, value, pageText string) (float64, string) {
	if pageText == "" {
		return 0, ""
	}

	switch typ {
	case model.RefExhibit:
		for _, exact := range []string{"exhibit " + value + ":", "exhibit " + value + " "} {
			if strings.Contains(pageText, exact) {
				return exactConfidence, model.MethodExactExhibit
			}
		}
		// Page text ends right after the designator.
		if strings.HasSuffix(pageText, "exhibit "+value) {
			return exactConfidence, model.MethodExactExhibit
		}
		if strings.Contains(pageText, "exhibit") && containsPhrase(pageText, value) {
			return tokenExhConfidence, model.MethodTokenExhibit
		}

	case model.RefTab:
		if containsPhrase(pageText, "tab "+value) {
			return exactConfidence, model.MethodExactTab
		}

	case model.RefSchedule:
		if containsPhrase(pageText, "schedule "+value) {
			return exactConfidence, model.MethodExactSchedule
		}

	case model.RefAffidavit:
		if strings.Contains(pageText, "affidavit of "+value) {
			return exactConfidence, model.MethodExactAffidavit
		}
		if strings.Contains(pageText, "affidavit") && anyNamePart(pageText, value) {
			return tokenAffConfidence, model.MethodTokenAffidavit
		}

	case model.RefUndertaking, model.RefRefusal, model.RefUnderAdvisement:
		term := strings.ReplaceAll(string(typ), "_", " ")
		if strings.Contains(pageText, term) {
			return sectionConfidence, model.MethodSectionMatch
		}
	}

	return 0, ""
}

// containsPhrase reports whether the phrase occurs in text at token
// boundaries on both sides: "tab 3" must not match inside "tab 31" or
// "rehab 3", and a one-letter exhibit value must not match inside an
// unrelated word.
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		at := start + i
		end := at + len(phrase)
		if (at == 0 || !isWordChar(text[at-1])) && (end == len(text) || !isWordChar(text[end])) {
			return true
		}
		start = at + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}

// anyNamePart reports whether any part of the deponent's name longer than
// two characters appears on the page as a whole word.
func anyNamePart(pageText, name string) bool {
	for _, part := range strings.Fields(name) {
		if len(part) > 2 && containsPhrase(pageText, part) {
			return true
		}
	}
	return false
}
