package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs the human review report.
// This format is what gets attached to the review ticket for a run.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter

	// expectedItems is forwarded to the manifest's count policy.
	expectedItems int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownExpectedItems sets the caller-supplied expected entry count.
func WithMarkdownExpectedItems(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.expectedItems = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the full review report in Markdown format.
func (w *MarkdownWriter) Write(run *model.Run) (int, error) {
	md := markdown.NewMarkdown(w.output)
	manifest := BuildManifest(run, w.expectedItems)

	w.writeHeader(md, run)
	w.writeValidation(md, run.Validation)
	w.writeItems(md, manifest)
	w.writeAttention(md, run)

	return len(md.String()), md.Build()
}

// WriteManifest outputs only the index item table in Markdown format.
func (w *MarkdownWriter) WriteManifest(manifest *model.Manifest) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Index Manifest")
	md.PlainText("")
	w.writeItems(md, manifest)
	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.Run) {
	md.H1("Record Link Review Report")
	md.PlainText("")

	briefs := make([]string, 0, len(run.Briefs))
	for _, b := range run.Briefs {
		briefs = append(briefs, "`"+b.ID+"`")
	}

	rows := [][]string{
		{"Run", "`" + run.ID + "`"},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Target Record", "`" + run.TargetRecord.ID + "`"},
		{"Briefs", strconv.Itoa(len(briefs))},
	}
	if run.AnchorPage > 0 {
		rows = append(rows, []string{"Index Page", strconv.Itoa(run.AnchorPage)})
	}
	if run.Master != nil {
		rows = append(rows, []string{"Combined Pages", strconv.Itoa(run.Master.TotalPages)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeValidation writes the outcome summary and the delivery alert.
func (w *MarkdownWriter) writeValidation(md *markdown.Markdown, v *model.ValidationReport) {
	md.H2("Resolution Summary")
	md.PlainText("")

	if v == nil {
		md.PlainText("The run stopped before validation; no summary is available.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Auto-linked", strconv.Itoa(v.AutoLinked)},
			{"Escalated / overridden", strconv.Itoa(v.EscalatedLinked)},
			{"Needs review", strconv.Itoa(v.NeedsReview)},
			{"**Total detected**", "**" + strconv.Itoa(v.TotalDetected) + "**"},
			{"Links placed", strconv.Itoa(v.LinksPlaced)},
			{"Broken links", strconv.Itoa(v.BrokenLinks)},
			{"Coverage", fmt.Sprintf("%.1f%%", v.CoveragePercent)},
		},
	})
	md.PlainText("")
	md.PlainTextf("Deterministic hash: `%s`", v.DeterministicHash)
	md.PlainText("")

	switch {
	case v.BrokenLinks > 0:
		md.Cautionf("%d link(s) point outside the combined document. The run must not be delivered.", v.BrokenLinks)
	case v.NeedsReview > 0:
		md.Warningf("%d item(s) need manual review before sign-off.", v.NeedsReview)
	default:
		md.Tip("Every detected item resolved. The run is ready for delivery.")
	}
	md.PlainText("")
}

// writeItems writes the index item table.
func (w *MarkdownWriter) writeItems(md *markdown.Markdown, manifest *model.Manifest) {
	md.H2("Index Items")
	md.PlainText("")

	if len(manifest.Items) == 0 {
		md.PlainText("No index entries.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(manifest.Items))
	for _, item := range manifest.Items {
		status := "missing"
		if item.Found {
			status = fmt.Sprintf("pp. %d-%d", item.StartPage, item.EndPage)
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Number),
			item.Label,
			status,
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"No", "Label", "Destination"},
		Rows:   rows,
	})
	md.PlainText("")

	if manifest.CountMismatch {
		md.Importantf("Detected %d entries but %d were expected. Check the index pages for splits or OCR noise.",
			manifest.TotalTabs, manifest.ExpectedItems)
		md.PlainText("")
	}
}

// writeAttention lists the references that still need a reviewer.
func (w *MarkdownWriter) writeAttention(md *markdown.Markdown, run *model.Run) {
	md.H2("References Needing Attention")
	md.PlainText("")

	attention := make([]string, 0)
	for _, row := range BuildReviewRows(run) {
		if !row.NeedsAttention {
			continue
		}
		attention = append(attention,
			fmt.Sprintf("%s p.%d: %s %s (%s)", row.SourceDoc, row.SourcePage, row.Type, row.Value, row.State))
	}

	if len(attention) == 0 {
		md.PlainText("None.")
		md.PlainText("")
		return
	}

	md.BulletList(attention...)
	md.PlainText("")
}

var _ Writer = (*MarkdownWriter)(nil)
