package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// JSONWriter outputs run reports in JSON format.
// This format is designed for tool integration and the review panel.
//
// Design decision: We use standard encoding/json rather than a third-party
// JSON library because:
// 1. It's part of the standard library (no extra dependencies)
// 2. It's sufficient for our needs
// 3. It provides consistent behavior across Go versions
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// expectedItems is forwarded to the manifest's count policy.
	expectedItems int
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = ""
		w.indentString = "  "
	}
}

// WithExpectedItems sets the caller-supplied expected index entry count.
func WithExpectedItems(n int) JSONWriterOption {
	return func(w *JSONWriter) {
		w.expectedItems = n
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the full machine artifact for one run: manifest, validation
// report, and per-reference review rows.
//
// Design decision: We wrap the run rather than marshalling model.Run
// directly because the output contract is owned by this package; the run
// can grow internal fields without breaking consumers.
type JSONReport struct {
	// RunID identifies the producing run.
	RunID string `json:"run_id"`

	// GeneratedAt is when this report was written.
	GeneratedAt time.Time `json:"generated_at"`

	// Briefs and TargetRecord identify the input documents.
	Briefs       []model.DocumentInfo `json:"briefs"`
	TargetRecord model.DocumentInfo   `json:"target_record"`

	// Manifest is the index-item summary.
	Manifest *model.Manifest `json:"manifest"`

	// Validation is the run's validation report, nil when the run stopped
	// before validation.
	Validation *model.ValidationReport `json:"validation,omitempty"`

	// References are the flattened review rows.
	References []ReviewRow `json:"references"`
}

// Write outputs the full run report in JSON format.
func (w *JSONWriter) Write(run *model.Run) (int, error) {
	return w.writeJSON(&JSONReport{
		RunID:        run.ID,
		GeneratedAt:  time.Now().UTC(),
		Briefs:       run.Briefs,
		TargetRecord: run.TargetRecord,
		Manifest:     BuildManifest(run, w.expectedItems),
		Validation:   run.Validation,
		References:   BuildReviewRows(run),
	})
}

// WriteManifest outputs only the manifest in JSON format.
func (w *JSONWriter) WriteManifest(manifest *model.Manifest) (int, error) {
	return w.writeJSON(manifest)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Trailing newline for better terminal output.
	data = append(data, '\n')

	return w.output.Write(data)
}
