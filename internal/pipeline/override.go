package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperlinklaw/recordlink/internal/assembler"
	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/hyperlinklaw/recordlink/internal/scorer"
	"github.com/hyperlinklaw/recordlink/internal/validator"
)

// ErrUnknownItem is returned when an override names an index item number
// that the run never detected.
var ErrUnknownItem = errors.New("no index item with that number")

// Override is one operator destination correction: item number in, new
// 1-based start page within the target record.
type Override struct {
	No        int `json:"no"`
	StartPage int `json:"start_page"`
}

// Overrider applies operator overrides to a completed run. Each override
// mutates exactly one index item, then re-places links and re-validates;
// detection, scanning, and scoring results are never recomputed.
//
// Design decision: overrides are serialized with a mutex rather than a
// queue because review panels submit them one at a time and the relink
// itself is fast. Concurrent submitters see each other's results through
// the shared run.
type Overrider struct {
	run       *model.Run
	assembler *assembler.Assembler
	validator *validator.Validator
	logger    *slog.Logger

	mu sync.Mutex
}

// OverriderOption configures an Overrider.
type OverriderOption func(*Overrider)

// WithOverriderLogger sets a custom logger for the overrider.
func WithOverriderLogger(logger *slog.Logger) OverriderOption {
	return func(o *Overrider) {
		o.logger = logger
	}
}

// NewOverrider creates an Overrider bound to a run that has been assembled
// and validated.
func NewOverrider(run *model.Run, opts ...OverriderOption) *Overrider {
	o := &Overrider{
		run:    run,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.assembler = assembler.New(assembler.WithLogger(o.logger))
	o.validator = validator.New(validator.WithLogger(o.logger))
	return o
}

// Apply executes one override: the named item gets the supplied start page,
// end pages are rederived for the whole resolved set (a move shifts the
// neighbors' sections), links are re-placed, and the validation report is
// recomputed. Untouched references keep their placements.
func (o *Overrider) Apply(ov Override) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.run.Master == nil {
		return errors.New("override requires an assembled master")
	}

	item := o.run.ItemByNumber(ov.No)
	if item == nil {
		return fmt.Errorf("%w: %d", ErrUnknownItem, ov.No)
	}
	if err := item.Override(ov.StartPage); err != nil {
		return err
	}
	scorer.ComputeEndPages(o.run.Items, o.run.TargetRecord.Pages)

	if err := o.assembler.Relink(o.run.Master, o.run.TargetRecord, o.run.IndexDoc, o.run.Items, o.run.References); err != nil {
		return fmt.Errorf("relink after override failed: %w", err)
	}
	o.run.Validation = o.validator.Validate(o.run.Master, o.run.Items, o.run.References)

	o.logger.Info("override applied",
		"item", ov.No,
		"start_page", ov.StartPage,
		"hash", o.run.Validation.DeterministicHash,
	)
	return nil
}

// ApplyAll applies a batch of overrides in order, stopping at the first
// failure.
func (o *Overrider) ApplyAll(overrides []Override) error {
	for _, ov := range overrides {
		if err := o.Apply(ov); err != nil {
			return err
		}
	}
	return nil
}
