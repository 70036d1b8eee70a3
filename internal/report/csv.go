package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// CSVWriter outputs the flat reference table, one row per detected mention.
// This matches what reviewers load into spreadsheets to spot-check a run.
//
// Design decision: encoding/csv from the standard library is used directly;
// the table is flat and small, and csv.Writer already handles quoting and
// embedded newlines in snippets.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// referenceHeader is the reference table's column order.
var referenceHeader = []string{
	"source_doc", "source_page", "type", "value", "snippet",
	"rects", "dest_page", "confidence", "method", "state",
}

// Write outputs the run's references as CSV, in detection order.
func (w *CSVWriter) Write(run *model.Run) (int, error) {
	cw := newCountingWriter(w.output)
	enc := csv.NewWriter(cw)

	if err := enc.Write(referenceHeader); err != nil {
		return cw.n, err
	}
	for _, row := range BuildReviewRows(run) {
		record := []string{
			row.SourceDoc,
			strconv.Itoa(row.SourcePage),
			row.Type,
			row.Value,
			row.Snippet,
			strconv.Itoa(row.Rects),
			strconv.Itoa(row.DestPage),
			strconv.FormatFloat(row.Confidence, 'f', 2, 64),
			row.Method,
			row.State,
		}
		if err := enc.Write(record); err != nil {
			return cw.n, err
		}
	}

	enc.Flush()
	return cw.n, enc.Error()
}

// manifestHeader is the manifest table's column order.
var manifestHeader = []string{
	"no", "label", "start_page", "end_page", "found", "marker",
}

// WriteManifest outputs the index items as CSV, sorted by number.
func (w *CSVWriter) WriteManifest(manifest *model.Manifest) (int, error) {
	cw := newCountingWriter(w.output)
	enc := csv.NewWriter(cw)

	if err := enc.Write(manifestHeader); err != nil {
		return cw.n, err
	}
	for _, item := range manifest.Items {
		record := []string{
			strconv.Itoa(item.Number),
			item.Label,
			strconv.Itoa(item.StartPage),
			strconv.Itoa(item.EndPage),
			strconv.FormatBool(item.Found),
			strconv.FormatBool(item.Marker),
		}
		if err := enc.Write(record); err != nil {
			return cw.n, err
		}
	}

	enc.Flush()
	return cw.n, enc.Error()
}

// countingWriter tracks bytes written so CSV output honors the Writer
// contract's byte count.
type countingWriter struct {
	w io.Writer
	n int
}

func newCountingWriter(w io.Writer) *countingWriter {
	return &countingWriter{w: w}
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

var _ Writer = (*CSVWriter)(nil)
var _ Writer = (*JSONWriter)(nil)
var _ Writer = (*MultiWriter)(nil)
