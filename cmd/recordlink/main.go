// Package main provides the entry point for the recordlink CLI.
//
// recordlink builds hyperlinked court records: it detects the index in a
// brief, scans every brief for tab and exhibit mentions, resolves each one
// to a page in the trial record, and assembles the combined document model
// with navigation links and an audit report.
//
// Usage:
//
//	recordlink build --record <record.pdf> <brief.pdf> [brief.pdf...]
//	recordlink detect <brief.pdf>
//	recordlink relink --set 3=41 <record.pdf>
//	recordlink ocr <document.pdf> [document.pdf...]
//
// See --help for all available options.
package main

// main is the entry point for recordlink.
func main() {
	Execute()
}
