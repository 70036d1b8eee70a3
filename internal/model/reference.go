package model

import (
	"errors"
	"fmt"
)

// RefType identifies which domain pattern produced a reference. The set is
// closed: legal filings in this corpus cross-reference each other through a
// small, fixed vocabulary.
type RefType string

// Reference types, in pattern priority order.
const (
	RefTab             RefType = "tab"
	RefExhibit         RefType = "exhibit"
	RefSchedule        RefType = "schedule"
	RefAffidavit       RefType = "affidavit"
	RefUndertaking     RefType = "undertaking"
	RefRefusal         RefType = "refusal"
	RefUnderAdvisement RefType = "under_advisement"
	RefDirectCite      RefType = "direct_cite"
)

// Valid reports whether t is one of the known reference types.
func (t RefType) Valid() bool {
	switch t {
	case RefTab, RefExhibit, RefSchedule, RefAffidavit,
		RefUndertaking, RefRefusal, RefUnderAdvisement, RefDirectCite:
		return true
	}
	return false
}

// ResolutionState tracks a reference or index item through the pipeline.
//
// State machine:
//
//	Unresolved → Scored → {AutoLinked | Escalated → {Linked | NeedsReview}}
//	NeedsReview → Overridden (re-entrant to a linked state)
type ResolutionState int

const (
	// StateUnresolved is the initial state before scoring.
	StateUnresolved ResolutionState = iota

	// StateScored means candidates have been computed but no decision taken.
	StateScored

	// StateAutoLinked means the top candidate met the confidence threshold.
	StateAutoLinked

	// StateEscalated means the decision was deferred to the external service.
	StateEscalated

	// StateLinked means the external service picked a destination.
	StateLinked

	// StateNeedsReview means no destination could be resolved automatically.
	StateNeedsReview

	// StateOverridden means an operator supplied the destination manually.
	StateOverridden
)

// String returns a human-readable state name.
func (s ResolutionState) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateScored:
		return "scored"
	case StateAutoLinked:
		return "auto_linked"
	case StateEscalated:
		return "escalated"
	case StateLinked:
		return "linked"
	case StateNeedsReview:
		return "needs_review"
	case StateOverridden:
		return "overridden"
	default:
		return "unknown"
	}
}

// Linked reports whether the state carries a usable destination.
func (s ResolutionState) Linked() bool {
	switch s {
	case StateAutoLinked, StateLinked, StateOverridden:
		return true
	}
	return false
}

// Validation errors returned by constructors in this package.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances at each call site. This allows callers to use
// errors.Is() for programmatic handling while still providing human-readable
// messages.
var (
	// ErrInvalidRefType is returned when a reference carries an unknown type tag.
	ErrInvalidRefType = errors.New("invalid reference type")

	// ErrNoRectangles is returned when a reference is constructed without a
	// locatable rectangle. A mention with no on-page location cannot host a
	// link annotation and must be dropped by the scanner, never fabricated.
	ErrNoRectangles = errors.New("reference has no rectangles")

	// ErrInvalidPage is returned for page numbers below 1. All local page
	// numbers are 1-based.
	ErrInvalidPage = errors.New("invalid page number: must be >= 1")
)

// Reference is a detected in-text mention of a cross-reference, with the
// on-page rectangles needed to place a link annotation over it.
//
// A Reference is immutable after scanning except for the resolution fields
// (Candidates, Top*, Decision, State), which are appended by scoring and
// escalation. Source page numbers are local to SourceDoc; conversion to
// global pages happens only in the assembler.
type Reference struct {
	// SourceDoc identifies the brief the mention was found in.
	SourceDoc string `json:"source_doc"`

	// SourcePage is the 1-based page within SourceDoc.
	SourcePage int `json:"source_page"`

	// Type tags which pattern matched.
	Type RefType `json:"type"`

	// Value is the normalized reference value: an exhibit letter/number, a
	// tab number, an affiant name, or a cited page number.
	Value string `json:"value"`

	// Snippet is a bounded context window around the match, kept for audit
	// and review display.
	Snippet string `json:"snippet"`

	// Rects are the bounding boxes of the matched text on the source page,
	// in the order the locator found them. Never empty.
	Rects []Rectangle `json:"rects"`

	// Candidates holds the top scored destinations, fully ordered. At most
	// three are retained.
	Candidates []DestinationCandidate `json:"candidates,omitempty"`

	// TopPage, TopConfidence, and TopMethod mirror Candidates[0] once scored,
	// or the escalation/override decision afterwards. TopPage is 1-based and
	// local to the target record; zero means unresolved.
	TopPage       int     `json:"top_page,omitempty"`
	TopConfidence float64 `json:"top_confidence,omitempty"`
	TopMethod     string  `json:"top_method,omitempty"`

	// State is the reference's position in the resolution state machine.
	State ResolutionState `json:"state"`
}

// NewReference builds a validated Reference in the Unresolved state.
// It rejects unknown types, out-of-range pages, and empty rectangle sets so
// that downstream components never have to re-check these invariants.
func NewReference(sourceDoc string, sourcePage int, typ RefType, value, snippet string, rects []Rectangle) (*Reference, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRefType, typ)
	}
	if sourcePage < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPage, sourcePage)
	}
	if len(rects) == 0 {
		return nil, ErrNoRectangles
	}
	return &Reference{
		SourceDoc:  sourceDoc,
		SourcePage: sourcePage,
		Type:       typ,
		Value:      value,
		Snippet:    snippet,
		Rects:      rects,
		State:      StateUnresolved,
	}, nil
}

// Resolved reports whether the reference has a usable destination page.
func (r *Reference) Resolved() bool {
	return r.TopPage >= 1 && r.State.Linked()
}

// SetScored records the ordered candidate list and promotes the reference to
// the Scored state. The top candidate, if any, is mirrored into the Top*
// fields.
func (r *Reference) SetScored(candidates []DestinationCandidate) {
	r.Candidates = candidates
	r.State = StateScored
	if len(candidates) > 0 {
		r.TopPage = candidates[0].Page
		r.TopConfidence = candidates[0].Confidence
		r.TopMethod = candidates[0].Method
	}
}

// Override replaces the resolved destination with an operator-supplied page
// and moves the reference to the Overridden state. Candidates are left
// intact for the audit trail.
func (r *Reference) Override(page int) error {
	if page < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	r.TopPage = page
	r.TopMethod = "manual_override"
	r.TopConfidence = 1.0
	r.State = StateOverridden
	return nil
}
