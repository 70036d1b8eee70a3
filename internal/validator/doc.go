// Package validator audits an assembled run: it counts and range-checks the
// placed annotations, classifies every detected entity by resolution
// outcome, and computes the deterministic content hash that makes two runs
// on identical input comparable without diffing PDF bytes.
package validator
