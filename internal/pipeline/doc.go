// Package pipeline orchestrates a resolution run as an ordered sequence of
// steps, each filling in its slice of the accumulated model.Run: index
// detection, mention scanning, destination scoring, escalation, assembly,
// and validation.
//
// The package also provides the review-side Overrider, which applies operator
// destination corrections to a completed run without re-detecting anything,
// and the BatchProcessor, which bulk-populates the OCR page store so the main
// pipeline never waits on recognition.
package pipeline
