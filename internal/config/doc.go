// Package config provides configuration structures and utilities for
// recordlink. It defines the thresholds that steer index detection, mention
// scanning, destination scoring, escalation, and OCR pre-processing, plus the
// YAML config-file loader and validation.
package config
