// Package assembler concatenates the source briefs and the target record
// into the combined Master document and places navigation annotations for
// every resolved reference and index item. All global page arithmetic lives
// here; every other component works in document-local coordinates.
package assembler
