// Package report renders run results for their two audiences: machines and
// reviewers. The JSON writer emits the manifest, the validation report, and
// per-reference review rows for tooling; the CSV writer emits the flat
// reference table; the Markdown writer produces the human review report.
// All writers share the Writer interface so the CLI can fan one run out to
// several destinations.
package report
