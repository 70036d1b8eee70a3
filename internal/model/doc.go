// Package model defines the core data structures used throughout recordlink.
//
// This package contains the following main types:
//   - Reference: A detected in-text cross-reference mention with its source location
//   - IndexItem: A numbered entry extracted from a document's index page
//   - DestinationCandidate: A scored hypothesis for a reference's target page
//   - Master: The combined-document model holding navigation link records
//   - ValidationReport / Manifest: The audit artifacts produced for each run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (detector, scanner, scorer, assembler,
// validator, report) need to use these types, so centralizing them prevents
// import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage. All page numbers in this package are 1-based and local to
// their source document; only the Master holds global page numbers, and only
// the assembler computes them.
package model
