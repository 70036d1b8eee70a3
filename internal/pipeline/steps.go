package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperlinklaw/recordlink/internal/assembler"
	"github.com/hyperlinklaw/recordlink/internal/config"
	"github.com/hyperlinklaw/recordlink/internal/detector"
	"github.com/hyperlinklaw/recordlink/internal/document"
	"github.com/hyperlinklaw/recordlink/internal/escalate"
	"github.com/hyperlinklaw/recordlink/internal/model"
	"github.com/hyperlinklaw/recordlink/internal/scanner"
	"github.com/hyperlinklaw/recordlink/internal/scorer"
	"github.com/hyperlinklaw/recordlink/internal/validator"
)

// DetectStep locates the index page in one document and extracts its
// numbered entries.
//
// Design decision: a missing or empty index is fatal to the whole run. A
// run that cannot see the index would otherwise assemble a zero-link master
// that looks successful, so the sentinel errors propagate and no output
// document is produced. Callers that want a mention-only pass compose a
// pipeline without this step.
type DetectStep struct {
	// source is the document expected to carry the index.
	source document.TextSource

	// detector performs anchor search and entry extraction.
	detector *detector.Detector

	// logger for structured logging.
	logger *slog.Logger
}

// DetectStepOption configures a DetectStep.
type DetectStepOption func(*DetectStep)

// WithDetectLogger sets a custom logger for the detect step.
func WithDetectLogger(logger *slog.Logger) DetectStepOption {
	return func(s *DetectStep) {
		s.logger = logger
	}
}

// NewDetectStep creates an index detection step over the given document.
func NewDetectStep(cfg *config.Config, source document.TextSource, opts ...DetectStepOption) *DetectStep {
	s := &DetectStep{
		source: source,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.detector = detector.New(cfg, detector.WithLogger(s.logger))
	return s
}

// Name returns the step name.
func (s *DetectStep) Name() string {
	return "detect_index"
}

// Do executes the index detection step.
func (s *DetectStep) Do(ctx context.Context, run *model.Run) error {
	anchor, items, err := s.detector.Detect(ctx, s.source)
	if err != nil {
		return fmt.Errorf("index detection failed for %s: %w", s.source.ID(), err)
	}

	run.AnchorPage = anchor
	run.IndexDoc = s.source.ID()
	run.Items = items

	s.logger.Info("index detected",
		"document", s.source.ID(),
		"anchor_page", anchor,
		"items", len(items),
	)
	return nil
}

// ScanStep detects in-text reference mentions across all brief documents.
type ScanStep struct {
	// sources are the briefs to scan, in assembly order.
	sources []document.TextSource

	// scanner performs pattern matching and rectangle location.
	scanner *scanner.Scanner

	// logger for structured logging.
	logger *slog.Logger
}

// ScanStepOption configures a ScanStep.
type ScanStepOption func(*ScanStep)

// WithScanLogger sets a custom logger for the scan step.
func WithScanLogger(logger *slog.Logger) ScanStepOption {
	return func(s *ScanStep) {
		s.logger = logger
	}
}

// NewScanStep creates a mention scanning step over the given briefs.
func NewScanStep(cfg *config.Config, sources []document.TextSource, opts ...ScanStepOption) *ScanStep {
	s := &ScanStep{
		sources: sources,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.scanner = scanner.New(cfg, scanner.WithLogger(s.logger))
	return s
}

// Name returns the step name.
func (s *ScanStep) Name() string {
	return "scan_mentions"
}

// Do executes the mention scan step.
func (s *ScanStep) Do(ctx context.Context, run *model.Run) error {
	for _, src := range s.sources {
		refs, err := s.scanner.Scan(ctx, src)
		if err != nil {
			return fmt.Errorf("mention scan failed for %s: %w", src.ID(), err)
		}
		run.References = append(run.References, refs...)
	}

	s.logger.Info("mention scan completed",
		"documents", len(s.sources),
		"references", len(run.References),
	)
	return nil
}

// ScoreStep builds the target-record destination index, scores every
// reference against it, resolves index item destinations, and promotes
// references whose top candidate clears the confidence threshold.
type ScoreStep struct {
	// target is the trial record references point into.
	target document.TextSource

	// band is the top-of-page fraction used for destination headings.
	band float64

	// minConfidence is the auto-link threshold.
	minConfidence float64

	// logger for structured logging.
	logger *slog.Logger
}

// ScoreStepOption configures a ScoreStep.
type ScoreStepOption func(*ScoreStep)

// WithScoreLogger sets a custom logger for the score step.
func WithScoreLogger(logger *slog.Logger) ScoreStepOption {
	return func(s *ScoreStep) {
		s.logger = logger
	}
}

// NewScoreStep creates a destination scoring step against the target record.
func NewScoreStep(cfg *config.Config, target document.TextSource, opts ...ScoreStepOption) *ScoreStep {
	s := &ScoreStep{
		target:        target,
		band:          config.DefaultDestinationBand,
		minConfidence: cfg.MinConfidence,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ScoreStep) Name() string {
	return "score_destinations"
}

// Do executes the scoring step.
func (s *ScoreStep) Do(ctx context.Context, run *model.Run) error {
	index, err := scorer.BuildIndex(ctx, s.target, s.band)
	if err != nil {
		return fmt.Errorf("destination index build failed for %s: %w", s.target.ID(), err)
	}

	sc := scorer.New(index, scorer.WithLogger(s.logger))
	sc.ScoreAll(run.References)
	sc.ResolveItems(run.Items)

	autoLinked := 0
	for _, ref := range run.References {
		if ref.State == model.StateScored && ref.TopConfidence >= s.minConfidence {
			ref.State = model.StateAutoLinked
			autoLinked++
		}
	}

	s.logger.Info("scoring completed",
		"references", len(run.References),
		"auto_linked", autoLinked,
		"items_resolved", resolvedItems(run.Items),
	)
	return nil
}

func resolvedItems(items []*model.IndexItem) int {
	n := 0
	for _, it := range items {
		if it.Found {
			n++
		}
	}
	return n
}

// EscalateStep sends every reference that did not clear the auto-link
// threshold to the decision service. A pick moves the reference to the
// linked state; anything else parks it for review.
type EscalateStep struct {
	// resolver decides low-confidence references.
	resolver escalate.Resolver

	// minConfidence is forwarded to the resolver as the decision rule.
	minConfidence float64

	// logger for structured logging.
	logger *slog.Logger
}

// EscalateStepOption configures an EscalateStep.
type EscalateStepOption func(*EscalateStep)

// WithEscalateLogger sets a custom logger for the escalate step.
func WithEscalateLogger(logger *slog.Logger) EscalateStepOption {
	return func(s *EscalateStep) {
		s.logger = logger
	}
}

// NewEscalateStep creates an escalation step using the given resolver.
func NewEscalateStep(cfg *config.Config, resolver escalate.Resolver, opts ...EscalateStepOption) *EscalateStep {
	s := &EscalateStep{
		resolver:      resolver,
		minConfidence: cfg.MinConfidence,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *EscalateStep) Name() string {
	return "escalate"
}

// Do executes the escalation step.
func (s *EscalateStep) Do(ctx context.Context, run *model.Run) error {
	picked, review := 0, 0
	for _, ref := range run.References {
		if ref.State != model.StateScored {
			continue
		}
		if len(ref.Candidates) == 0 {
			ref.State = model.StateNeedsReview
			review++
			continue
		}

		ref.State = model.StateEscalated
		decision := s.resolver.Resolve(ctx, ref, s.minConfidence)
		if !decision.Pick {
			ref.State = model.StateNeedsReview
			review++
			continue
		}

		ref.TopPage = decision.DestPage
		for _, cand := range ref.Candidates {
			if cand.Page == decision.DestPage {
				ref.TopConfidence = cand.Confidence
				ref.TopMethod = cand.Method
				break
			}
		}
		ref.State = model.StateLinked
		picked++
	}

	s.logger.Info("escalation completed",
		"picked", picked,
		"needs_review", review,
	)
	return nil
}

// AssembleStep builds the combined-document model: the page offset table and
// the global link placements.
type AssembleStep struct {
	// assembler performs offset computation and link placement.
	assembler *assembler.Assembler

	// logger for structured logging.
	logger *slog.Logger
}

// AssembleStepOption configures an AssembleStep.
type AssembleStepOption func(*AssembleStep)

// WithAssembleLogger sets a custom logger for the assemble step.
func WithAssembleLogger(logger *slog.Logger) AssembleStepOption {
	return func(s *AssembleStep) {
		s.logger = logger
		s.assembler = assembler.New(assembler.WithLogger(logger))
	}
}

// NewAssembleStep creates a master assembly step.
func NewAssembleStep(opts ...AssembleStepOption) *AssembleStep {
	s := &AssembleStep{
		assembler: assembler.New(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AssembleStep) Name() string {
	return "assemble"
}

// Do executes the assembly step.
func (s *AssembleStep) Do(_ context.Context, run *model.Run) error {
	master, err := s.assembler.Assemble(run.Briefs, run.TargetRecord, run.IndexDoc, run.Items, run.References)
	if err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}
	run.Master = master

	s.logger.Info("assembly completed",
		"total_pages", master.TotalPages,
		"links_placed", master.LinkCount(),
	)
	return nil
}

// ValidateStep produces the run's validation report from the assembled
// master.
type ValidateStep struct {
	// validator walks the master and classifies outcomes.
	validator *validator.Validator

	// logger for structured logging.
	logger *slog.Logger
}

// ValidateStepOption configures a ValidateStep.
type ValidateStepOption func(*ValidateStep)

// WithValidateLogger sets a custom logger for the validate step.
func WithValidateLogger(logger *slog.Logger) ValidateStepOption {
	return func(s *ValidateStep) {
		s.logger = logger
		s.validator = validator.New(validator.WithLogger(logger))
	}
}

// NewValidateStep creates a validation step.
func NewValidateStep(opts ...ValidateStepOption) *ValidateStep {
	s := &ValidateStep{
		validator: validator.New(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return "validate"
}

// Do executes the validation step.
func (s *ValidateStep) Do(_ context.Context, run *model.Run) error {
	if run.Master == nil {
		return errors.New("validation requires an assembled master")
	}
	run.Validation = s.validator.Validate(run.Master, run.Items, run.References)

	s.logger.Info("validation completed",
		"auto_linked", run.Validation.AutoLinked,
		"escalated_linked", run.Validation.EscalatedLinked,
		"needs_review", run.Validation.NeedsReview,
		"broken_links", run.Validation.BrokenLinks,
		"hash", run.Validation.DeterministicHash,
	)
	return nil
}

// DefaultPipeline creates a pipeline with all standard steps configured, in
// execution order: detect, scan, score, escalate, assemble, validate. The
// index is expected in the first brief.
//
// Design decision: We provide a default pipeline because:
// 1. Every full run wants the same steps in the same order
// 2. It reduces boilerplate in the CLI
// 3. Consistent ordering keeps runs reproducible
func DefaultPipeline(
	cfg *config.Config,
	briefs []document.TextSource,
	target document.TextSource,
	resolver escalate.Resolver,
	opts ...Option,
) *Pipeline {
	p := New(opts...)

	p.AddSteps(
		NewDetectStep(cfg, briefs[0], WithDetectLogger(p.logger)),
		NewScanStep(cfg, briefs, WithScanLogger(p.logger)),
		NewScoreStep(cfg, target, WithScoreLogger(p.logger)),
		NewEscalateStep(cfg, resolver, WithEscalateLogger(p.logger)),
		NewAssembleStep(WithAssembleLogger(p.logger)),
		NewValidateStep(WithValidateLogger(p.logger)),
	)

	return p
}
