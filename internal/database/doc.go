// Package database provides SQLite-backed storage for recognized page text
// and run reports. The page store is what makes OCR runs resumable: a killed
// run picks up from the last persisted page instead of re-rasterizing the
// whole record.
package database
