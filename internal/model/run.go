package model

import (
	"time"

	"github.com/google/uuid"
)

// Run accumulates the state of one resolution/assembly pass over a document
// set: the source briefs, the target record, and everything detected, scored,
// and placed along the way. Pipeline steps receive the Run and fill in their
// slice of it, mirroring how each produces data for the next.
//
// References and IndexItems are owned by the run that produced them; there is
// no cross-run identity and no cross-run shared mutable state.
type Run struct {
	// ID uniquely identifies this run in manifests and logs.
	ID string `json:"run_id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Briefs are the source documents, in assembly order.
	Briefs []DocumentInfo `json:"briefs"`

	// TargetRecord is the record the references point into (the trial
	// record), concatenated after the briefs.
	TargetRecord DocumentInfo `json:"target_record"`

	// AnchorPage is the 1-based page the index was detected on, or 0 when
	// index detection was skipped or failed.
	AnchorPage int `json:"anchor_page,omitempty"`

	// IndexDoc identifies the document the index was detected in. Empty when
	// AnchorPage is 0.
	IndexDoc string `json:"index_doc,omitempty"`

	// Items are the detected index entries, sorted by number.
	Items []*IndexItem `json:"items,omitempty"`

	// References are the detected in-text mentions across all briefs.
	References []*Reference `json:"references,omitempty"`

	// Master is the assembled combined document, nil until assembly.
	Master *Master `json:"master,omitempty"`

	// Validation is the latest validation report, nil until validated.
	Validation *ValidationReport `json:"validation,omitempty"`

	// StepsRun names the pipeline steps executed, in order.
	StepsRun []string `json:"steps_run,omitempty"`
}

// NewRun creates an empty Run with a fresh ID.
func NewRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// ItemByNumber returns the index item with the given number, or nil.
func (r *Run) ItemByNumber(no int) *IndexItem {
	for _, it := range r.Items {
		if it.Number == no {
			return it
		}
	}
	return nil
}

// ResolvedCount returns how many items and references carry a destination.
func (r *Run) ResolvedCount() int {
	n := 0
	for _, it := range r.Items {
		if it.Found && it.StartPage >= 1 {
			n++
		}
	}
	for _, ref := range r.References {
		if ref.Resolved() {
			n++
		}
	}
	return n
}

// TotalDetected returns the combined count of index items and references.
func (r *Run) TotalDetected() int {
	return len(r.Items) + len(r.References)
}
