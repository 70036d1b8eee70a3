package model

// LinkRecord is a navigation annotation in the combined document: a clickable
// rectangle on one global page pointing at another global page. It is the
// only structure the assembler writes into the Master; everything else in a
// run is audit data.
//
// Both page fields are 0-based global indexes into the combined document,
// matching the convention of PDF link dictionaries.
type LinkRecord struct {
	// SourceRect is the clickable area on the source page.
	SourceRect Rectangle `json:"rect"`

	// SourcePage is the 0-based global page carrying the annotation.
	SourcePage int `json:"source_page_global"`

	// TargetPage is the 0-based global page the annotation jumps to.
	TargetPage int `json:"target_page_global"`
}

// DocumentInfo identifies one source document in a run.
type DocumentInfo struct {
	// ID is the document's identifier, normally its base filename.
	ID string `json:"id"`

	// Path is the document's location on disk.
	Path string `json:"path"`

	// Pages is the document's page count.
	Pages int `json:"pages"`
}

// Master is the combined-document model: the source documents concatenated
// in a fixed order, plus the navigation annotations placed on its pages.
// Byte-level PDF encoding is a downstream collaborator's job; the Master
// carries everything that collaborator needs (offsets and link records) and
// everything the validator needs (page count and per-page annotations).
//
// A Master is exclusively owned by the run that assembled it. The offset
// table is written once during assembly and read-only afterwards; the only
// mutation rebuilds link records through the assembler's clear-then-insert
// rule.
type Master struct {
	// Documents lists the concatenated sources in assembly order, target
	// record last.
	Documents []DocumentInfo `json:"documents"`

	// Offsets maps each document ID to its 0-based global page offset: the
	// running total of preceding documents' page counts. Populated only by
	// the assembler; no other component computes a global page number.
	Offsets map[string]int `json:"offsets"`

	// TotalPages is the combined page count.
	TotalPages int `json:"total_pages"`

	// Links holds the navigation annotations per 0-based global page.
	Links map[int][]LinkRecord `json:"links"`
}

// LinksOn returns the navigation annotations on a 0-based global page.
func (m *Master) LinksOn(page int) []LinkRecord {
	return m.Links[page]
}

// LinkCount returns the total number of navigation annotations placed.
func (m *Master) LinkCount() int {
	n := 0
	for _, links := range m.Links {
		n += len(links)
	}
	return n
}
