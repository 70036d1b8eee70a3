package model

// ValidationReport is the audit artifact produced after every assembly.
// It is recomputed fresh each run and never persisted as a source of truth.
type ValidationReport struct {
	// TotalDetected is the number of references and index items detected.
	TotalDetected int `json:"total_detected"`

	// AutoLinked counts items whose top candidate met the confidence
	// threshold without escalation.
	AutoLinked int `json:"auto_linked"`

	// EscalatedLinked counts items linked through an external pick decision
	// or a manual override.
	EscalatedLinked int `json:"escalated_linked"`

	// NeedsReview counts everything else. The three buckets always sum to
	// TotalDetected.
	NeedsReview int `json:"needs_review"`

	// BrokenLinks counts placed annotations whose target page falls outside
	// the combined document. Non-zero blocks delivery but not output.
	BrokenLinks int `json:"broken_links"`

	// LinksPlaced is the number of navigation annotations in the Master.
	LinksPlaced int `json:"links_placed"`

	// CoveragePercent is (AutoLinked+EscalatedLinked)/TotalDetected * 100,
	// or 0 when nothing was detected.
	CoveragePercent float64 `json:"coverage_percent"`

	// DeterministicHash is the sha256 hex digest of the canonicalized
	// reference→destination mapping. Identical input must yield an identical
	// hash across runs; any changed resolution decision changes it.
	DeterministicHash string `json:"deterministic_hash"`
}

// Delivered reports whether the run is clean enough to hand over: every
// annotation target is in range. Unresolved items do not block delivery, a
// broken link does.
func (v *ValidationReport) Delivered() bool {
	return v.BrokenLinks == 0
}

// ManifestItem is one index entry row in the manifest output.
type ManifestItem struct {
	Number    int    `json:"no"`
	Label     string `json:"label"`
	StartPage int    `json:"start_page,omitempty"`
	EndPage   int    `json:"end_page,omitempty"`
	Found     bool   `json:"found"`
	Marker    bool   `json:"marker,omitempty"`
}

// Manifest is the machine-readable run summary: one row per index item plus
// the counters review tooling keys on. The pipeline always produces a
// manifest, even on partial failure; unresolved items appear with
// Found == false rather than being omitted.
type Manifest struct {
	// RunID identifies the producing run.
	RunID string `json:"run_id"`

	// IndexPage is the 1-based anchor page the index was detected on.
	IndexPage int `json:"index_page"`

	// Items lists every detected index entry, sorted by number.
	Items []ManifestItem `json:"items"`

	// TotalTabs is the number of detected index entries.
	TotalTabs int `json:"total_tabs"`

	// LinksFound counts entries with a resolved destination.
	LinksFound int `json:"links_found"`

	// LinksPlaced counts navigation annotations actually written. Strict
	// mode guarantees LinksPlaced <= TotalTabs + reference count.
	LinksPlaced int `json:"links_placed"`

	// ExpectedItems echoes the caller-supplied expected-count policy, when
	// one was given. Zero disables the check.
	ExpectedItems int `json:"expected_items,omitempty"`

	// CountMismatch is set when ExpectedItems is non-zero and differs from
	// TotalTabs. A mismatch is reported, never fatal: the right count is
	// corpus-specific.
	CountMismatch bool `json:"count_mismatch,omitempty"`
}
