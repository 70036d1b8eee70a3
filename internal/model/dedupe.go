package model

// FirstWins collapses a slice to the first element seen for each key,
// preserving encounter order.
//
// Design decision: the "first occurrence wins" rule appears in several places
// (index item numbers repeated by footers, destination pages scored twice,
// rectangles re-found under a different case variation). Implementing it once
// keeps the tie-break documented in a single spot instead of re-derived ad
// hoc at each call site.
func FirstWins[K comparable, T any](items []T, key func(T) K) []T {
	if len(items) < 2 {
		return items
	}
	seen := make(map[K]struct{}, len(items))
	out := items[:0:0]
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}
