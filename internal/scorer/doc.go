// Package scorer resolves where in the target record each reference points.
// A normalized per-page text index of the record is built once per run;
// scoring is pure lookups against it, so identical input always produces
// identical candidate lists.
package scorer
