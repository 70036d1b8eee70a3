package model

import "fmt"

// IndexItem is a numbered entry extracted from a document's index page
// ("1. Affidavit of J. Smith ..."). Items are unique by number within a
// detection run; the first occurrence of a number wins and later repeats
// (footers, rescans of the same heading) are discarded.
//
// An item whose destination cannot be resolved is retained with
// StartPage == 0 and Found == false, never silently dropped: the manifest
// must account for every detected entry.
type IndexItem struct {
	// Number is the item's positive integer label in the index.
	Number int `json:"no"`

	// Label is the free-text entry title as extracted.
	Label string `json:"label"`

	// Page is the 1-based index page the entry was found on.
	Page int `json:"index_page"`

	// Rect is the entry line's bounding box on the index page. May be empty
	// when the entry came from OCR text without word geometry; such items are
	// reported but cannot host a link annotation.
	Rect Rectangle `json:"rect"`

	// Marker is true when the entry was located through an explicit *T<n>
	// marker planted in the document rather than a pattern match. Markers
	// are authoritative and take priority during destination search.
	Marker bool `json:"marker,omitempty"`

	// StartPage is the resolved 1-based destination page within the target
	// record, or 0 while unresolved.
	StartPage int `json:"start_page,omitempty"`

	// EndPage is the last page of the item's section: the page before the
	// next item's StartPage, or the record's final page for the last item.
	EndPage int `json:"end_page,omitempty"`

	// Found reports whether a destination was resolved.
	Found bool `json:"found"`

	// State is the item's position in the resolution state machine shared
	// with Reference.
	State ResolutionState `json:"state"`
}

// NewIndexItem builds a validated, unresolved IndexItem.
func NewIndexItem(number int, label string, page int, rect Rectangle) (*IndexItem, error) {
	if number < 1 {
		return nil, fmt.Errorf("index item number must be positive, got %d", number)
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPage, page)
	}
	return &IndexItem{
		Number: number,
		Label:  label,
		Page:   page,
		Rect:   rect,
		State:  StateUnresolved,
	}, nil
}

// Resolve records a destination page and marks the item found.
func (it *IndexItem) Resolve(startPage int, state ResolutionState) error {
	if startPage < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, startPage)
	}
	it.StartPage = startPage
	it.Found = true
	it.State = state
	return nil
}

// Override replaces the item's destination with an operator-supplied page.
// Only StartPage and the derived Found/State fields change; detection data
// (label, rectangle, marker flag) is untouched.
func (it *IndexItem) Override(startPage int) error {
	if startPage < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidPage, startPage)
	}
	it.StartPage = startPage
	it.Found = true
	it.State = StateOverridden
	return nil
}
