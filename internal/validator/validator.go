package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// Validator audits the assembled Master against the run's detected set.
type Validator struct {
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate walks the Master's annotations and produces the run's validation
// report. The three outcome buckets partition the detected set: auto-linked
// (threshold met), escalated-linked (external pick or manual override), and
// needs-review (everything else).
func (v *Validator) Validate(master *model.Master, items []*model.IndexItem, refs []*model.Reference) *model.ValidationReport {
	report := &model.ValidationReport{
		TotalDetected: len(items) + len(refs),
	}

	if master != nil {
		for page := 0; page < master.TotalPages; page++ {
			for _, link := range master.LinksOn(page) {
				report.LinksPlaced++
				if link.TargetPage < 0 || link.TargetPage >= master.TotalPages {
					report.BrokenLinks++
				}
			}
		}
	}

	for _, item := range items {
		bumpBucket(report, item.State)
	}
	for _, ref := range refs {
		bumpBucket(report, ref.State)
	}

	if report.TotalDetected > 0 {
		report.CoveragePercent = float64(report.AutoLinked+report.EscalatedLinked) / float64(report.TotalDetected) * 100
	}
	report.DeterministicHash = Hash(items, refs)

	v.logger.Debug("validation complete",
		slog.Int("total_detected", report.TotalDetected),
		slog.Int("links_placed", report.LinksPlaced),
		slog.Int("broken_links", report.BrokenLinks),
		slog.String("hash", report.DeterministicHash))

	return report
}

func bumpBucket(report *model.ValidationReport, state model.ResolutionState) {
	switch state {
	case model.StateAutoLinked:
		report.AutoLinked++
	case model.StateLinked, model.StateOverridden:
		report.EscalatedLinked++
	default:
		report.NeedsReview++
	}
}

// hashEntry is one resolved entity in the canonical hash input. Field order
// is fixed; encoding/json preserves struct order, so identical resolutions
// always serialize identically.
type hashEntry struct {
	SourceFile  string `json:"source_file"`
	SourcePage  int    `json:"source_page"`
	RefType     string `json:"ref_type"`
	RefValue    string `json:"ref_value"`
	TopDestPage int    `json:"top_dest_page"`
}

// indexItemSource is the synthetic source-file tag for index items in the
// hash input, which are detected on an index page rather than in brief text.
const indexItemSource = "index"

// Hash computes the sha256 hex digest of the canonicalized resolution map:
// every entity with a destination, sorted by (source_file, source_page,
// ref_type, ref_value). Identical input yields an identical hash; any
// changed destination, including one applied by override, changes it.
func Hash(items []*model.IndexItem, refs []*model.Reference) string {
	entries := make([]hashEntry, 0, len(items)+len(refs))

	for _, item := range items {
		if item.Found && item.StartPage >= 1 {
			entries = append(entries, hashEntry{
				SourceFile:  indexItemSource,
				SourcePage:  item.Page,
				RefType:     "index_item",
				RefValue:    strconv.Itoa(item.Number),
				TopDestPage: item.StartPage,
			})
		}
	}
	for _, ref := range refs {
		if ref.TopPage >= 1 {
			entries = append(entries, hashEntry{
				SourceFile:  ref.SourceDoc,
				SourcePage:  ref.SourcePage,
				RefType:     string(ref.Type),
				RefValue:    ref.Value,
				TopDestPage: ref.TopPage,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		if a.SourcePage != b.SourcePage {
			return a.SourcePage < b.SourcePage
		}
		if a.RefType != b.RefType {
			return a.RefType < b.RefType
		}
		return a.RefValue < b.RefValue
	})

	data, err := json.Marshal(entries)
	if err != nil {
		// Marshal of plain structs cannot fail; keep the signature simple.
		panic(fmt.Sprintf("hash serialization failed: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
