package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// contentKeys contains attribute keys whose values are document content and
// must never appear verbatim in log output. Snippets and labels routinely
// quote affidavit text with names, addresses, and privileged material.
var contentKeys = map[string]bool{
	"snippet":   true,
	"label":     true,
	"line":      true,
	"text":      true,
	"needle":    true,
	"value":     true,
	"affiant":   true,
	"page_text": true,
}

// credentialKeywords marks keys that may carry service credentials (the
// escalation API key, OCR service tokens). These are masked entirely.
var credentialKeywords = []string{
	"api_key", "apikey", "token", "secret", "password", "credential", "authorization",
}

// MaskValue is the string used to replace credential values.
const MaskValue = "***REDACTED***"

// maxContentPreview is how many characters of document content survive into
// a log line. Enough to recognize the entry under discussion, not enough to
// reproduce it.
const maxContentPreview = 12

// RedactHandler wraps an slog.Handler to keep document content and
// credentials out of log output.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because:
//  1. It integrates seamlessly with standard slog APIs
//  2. It works with any underlying handler (text, JSON, etc.)
//  3. Redaction cannot be forgotten at individual call sites
type RedactHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler
}

// NewRedactHandler creates a RedactHandler wrapping the given handler.
// If handler is nil, the returned RedactHandler wraps slog.Default().Handler().
func NewRedactHandler(handler slog.Handler) *RedactHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it on.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added,
// sanitized first.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &RedactHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *RedactHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if isCredentialKey(keyLower) {
		return slog.String(a.Key, MaskValue)
	}
	if contentKeys[keyLower] && a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, truncateContent(a.Value.String()))
	}
	return a
}

// isCredentialKey checks whether the key suggests a service credential.
func isCredentialKey(key string) bool {
	for _, keyword := range credentialKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// truncateContent shortens document content to a recognizable preview.
func truncateContent(s string) string {
	runes := []rune(s)
	if len(runes) <= maxContentPreview {
		return s
	}
	return string(runes[:maxContentPreview]) + "…"
}

// NewLogger creates a *slog.Logger with redacting handling.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(NewRedactHandler(slog.NewTextHandler(w, opts)))
}
