package detector

import "errors"

// Detection errors.
//
// Design decision: Both failures are fatal to the detection step and abort
// the run before any output document is produced. A record rebuilt without
// its index would carry zero links while reporting success, which is worse
// than failing loudly.
var (
	// ErrIndexNotFound means no page within the scan limit matched an index
	// header hint.
	ErrIndexNotFound = errors.New("no index page found within scan limit")

	// ErrNoItemsExtracted means an anchor page was found but no numbered
	// entries could be parsed from it or its continuation pages.
	ErrNoItemsExtracted = errors.New("index page found but no numbered entries extracted")
)
