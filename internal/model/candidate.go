package model

import "sort"

// Scoring method tags. Each tag identifies which rule produced a candidate's
// confidence; the tag order below is the fixed tie-break priority.
const (
	MethodExactExhibit   = "exact_exhibit"
	MethodExactTab       = "exact_tab"
	MethodExactSchedule  = "exact_schedule"
	MethodExactAffidavit = "exact_affidavit"
	MethodDirectCite     = "direct_cite"
	MethodTokenAffidavit = "token_affidavit"
	MethodTokenExhibit   = "token_exhibit"
	MethodSectionMatch   = "section_match"
)

// methodPriority is the fixed total order over method tags: exact matches
// before token matches before section matches. Unknown tags sort last so a
// typo can never steal a tie-break.
var methodPriority = map[string]int{
	MethodExactExhibit:   0,
	MethodExactTab:       1,
	MethodExactSchedule:  2,
	MethodExactAffidavit: 3,
	MethodDirectCite:     4,
	MethodTokenAffidavit: 5,
	MethodTokenExhibit:   6,
	MethodSectionMatch:   7,
}

// unknownMethodPriority sorts after every known method.
const unknownMethodPriority = 999

// MethodPriority returns the tie-break rank of a method tag.
func MethodPriority(method string) int {
	if p, ok := methodPriority[method]; ok {
		return p
	}
	return unknownMethodPriority
}

// MethodOrder returns the known method tags in priority order. The slice is
// a copy; callers may not mutate the canonical order.
func MethodOrder() []string {
	out := make([]string, len(methodPriority))
	for m, p := range methodPriority {
		out[p] = m
	}
	return out
}

// DestinationCandidate is a scored hypothesis for which target-record page a
// reference points to. Candidates are ephemeral: generated during scoring,
// at most three retained per reference.
type DestinationCandidate struct {
	// Page is the 1-based page within the target record.
	Page int `json:"dest_page"`

	// Confidence is the score in [0,1] assigned by the scoring rule.
	Confidence float64 `json:"confidence"`

	// Method tags which rule produced the score.
	Method string `json:"method"`
}

// SortCandidates orders candidates by (confidence desc, page asc, method
// priority asc). This ordering is the single source of truth for "best"
// destination: every component that needs a winner sorts with this function
// rather than re-implementing the rule.
//
// Design decision: sort.SliceStable keeps the sort reproducible even if two
// candidates ever compare equal on all three keys (same page scored twice by
// the same method), so repeated runs on identical input yield byte-identical
// candidate lists.
func SortCandidates(candidates []DestinationCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return MethodPriority(a.Method) < MethodPriority(b.Method)
	})
}
