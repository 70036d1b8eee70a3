package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances in Validate(). This allows callers to use errors.Is()
// for programmatic error handling while still providing human-readable
// messages.
var (
	// ErrInvalidMinConfidence is returned when the auto-link threshold is
	// outside (0,1]. A threshold of zero would auto-link every scored
	// reference regardless of quality.
	ErrInvalidMinConfidence = errors.New("invalid min confidence: must be in (0,1]")

	// ErrInvalidScanLimit is returned when a page-scan limit is not positive.
	// A limit of zero would make index detection fail on every document.
	ErrInvalidScanLimit = errors.New("invalid page scan limit: must be positive")

	// ErrInvalidMinItems is returned when the continuation heuristic is not
	// positive. Zero would treat every page as an index continuation.
	ErrInvalidMinItems = errors.New("invalid min items per page: must be positive")

	// ErrInvalidOCRConfidence is returned when the OCR retry gate is outside
	// [0,1].
	ErrInvalidOCRConfidence = errors.New("invalid ocr confidence threshold: must be in [0,1]")

	// ErrInvalidOCRDPI is returned when an OCR resolution is not positive.
	ErrInvalidOCRDPI = errors.New("invalid ocr dpi: must be positive")

	// ErrInvalidTimeout is returned when the escalation timeout is not
	// positive. An unbounded escalation call could stall the pipeline.
	ErrInvalidTimeout = errors.New("invalid escalation timeout: must be positive")

	// ErrInvalidConcurrency is returned when the batch concurrency is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid batch concurrency: must be positive")

	// ErrInvalidExpectedItems is returned when the expected-count policy is
	// negative. Zero disables the check.
	ErrInvalidExpectedItems = errors.New("invalid expected items: must be non-negative")
)
