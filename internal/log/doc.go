// Package log provides a redacting slog.Handler for recordlink.
//
// Court filings carry personal information: affiant names, addresses, and
// solicitor-client material surface in context snippets and index labels.
// Log output frequently leaves the machine the documents live on (CI logs,
// support bundles), so document content is truncated or masked at the
// logging boundary while structural data (counts, page numbers, hashes,
// confidences) passes through untouched.
package log
