// Package scanner finds typed cross-reference mentions ("Tab 3",
// "Exhibit A-1", "Affidavit of J. Smith") in brief pages. Each mention is
// located on the page through word geometry; mentions that cannot be located
// are dropped rather than emitted with a fabricated position.
package scanner
