package report

import (
	"github.com/hyperlinklaw/recordlink/internal/model"
)

// BuildManifest produces the machine-readable run summary. Every detected
// index item appears, resolved or not; review tooling needs the full set to
// show what is missing, not just what worked.
//
// expectedItems enables the caller-supplied count policy: when non-zero and
// different from the detected count, the manifest carries a mismatch flag.
// The mismatch is reported, never fatal.
func BuildManifest(run *model.Run, expectedItems int) *model.Manifest {
	m := &model.Manifest{
		RunID:         run.ID,
		IndexPage:     run.AnchorPage,
		TotalTabs:     len(run.Items),
		ExpectedItems: expectedItems,
	}

	for _, item := range run.Items {
		m.Items = append(m.Items, model.ManifestItem{
			Number:    item.Number,
			Label:     item.Label,
			StartPage: item.StartPage,
			EndPage:   item.EndPage,
			Found:     item.Found,
			Marker:    item.Marker,
		})
		if item.Found {
			m.LinksFound++
		}
	}

	if run.Master != nil {
		m.LinksPlaced = run.Master.LinkCount()
	}
	if expectedItems > 0 && expectedItems != m.TotalTabs {
		m.CountMismatch = true
	}

	return m
}

// ReviewRow is one reference in the review output, flattened for the review
// panel: where the mention sits, what it resolved to, and how sure the
// pipeline is about it.
type ReviewRow struct {
	SourceDoc      string  `json:"source_doc"`
	SourcePage     int     `json:"source_page"`
	Type           string  `json:"type"`
	Value          string  `json:"value"`
	Snippet        string  `json:"snippet"`
	Rects          int     `json:"rects"`
	DestPage       int     `json:"dest_page,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Method         string  `json:"method,omitempty"`
	State          string  `json:"state"`
	NeedsAttention bool    `json:"needs_attention"`
}

// BuildReviewRows flattens the run's references for review output, in
// detection order.
func BuildReviewRows(run *model.Run) []ReviewRow {
	rows := make([]ReviewRow, 0, len(run.References))
	for _, ref := range run.References {
		rows = append(rows, ReviewRow{
			SourceDoc:      ref.SourceDoc,
			SourcePage:     ref.SourcePage,
			Type:           string(ref.Type),
			Value:          ref.Value,
			Snippet:        ref.Snippet,
			Rects:          len(ref.Rects),
			DestPage:       ref.TopPage,
			Confidence:     ref.TopConfidence,
			Method:         ref.TopMethod,
			State:          ref.State.String(),
			NeedsAttention: !ref.Resolved(),
		})
	}
	return rows
}
