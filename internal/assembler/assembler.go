package assembler

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// Assembly errors.
var (
	// ErrLinkCountViolation means more annotations were placed than entities
	// carry a destination. The one-to-one guarantee has been broken upstream;
	// the run must abort rather than deliver a silently wrong document.
	ErrLinkCountViolation = errors.New("placed links exceed resolved entities")

	// ErrUnknownDocument means a reference names a source document that is
	// not part of the assembly.
	ErrUnknownDocument = errors.New("reference names a document outside the assembly")

	// ErrNoDocuments means assembly was attempted with no inputs.
	ErrNoDocuments = errors.New("no documents to assemble")
)

// Assembler builds the Master document and owns its link placement.
type Assembler struct {
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble concatenates the briefs in caller order followed by the target
// record, computes the offset table, and places annotations for the resolved
// set. indexDoc names the brief carrying the index page the items were
// detected on.
func (a *Assembler) Assemble(briefs []model.DocumentInfo, target model.DocumentInfo, indexDoc string, items []*model.IndexItem, refs []*model.Reference) (*model.Master, error) {
	if len(briefs) == 0 && target.Pages == 0 {
		return nil, ErrNoDocuments
	}

	master := &model.Master{
		Offsets: make(map[string]int),
		Links:   make(map[int][]model.LinkRecord),
	}

	offset := 0
	for _, brief := range briefs {
		master.Documents = append(master.Documents, brief)
		master.Offsets[brief.ID] = offset
		offset += brief.Pages
	}
	master.Documents = append(master.Documents, target)
	master.Offsets[target.ID] = offset
	master.TotalPages = offset + target.Pages

	if err := a.Relink(master, target, indexDoc, items, refs); err != nil {
		return nil, err
	}
	return master, nil
}

// Relink replaces the Master's navigation annotations from the current
// resolved set. Every page about to receive annotations is cleared first, so
// rebuilding from the same resolved set always produces identical placement
// and repeated overrides never stack duplicate links.
//
// One annotation is placed per resolved entity, from its primary rectangle.
// The strict invariant (annotations never exceed resolved entities) is
// enforced here and is fatal on violation.
func (a *Assembler) Relink(master *model.Master, target model.DocumentInfo, indexDoc string, items []*model.IndexItem, refs []*model.Reference) error {
	targetOffset, ok := master.Offsets[target.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, target.ID)
	}

	links, err := a.buildLinks(master, targetOffset, indexDoc, items, refs)
	if err != nil {
		return err
	}

	resolved := resolvedCount(items, refs)
	if len(links) > resolved {
		return fmt.Errorf("%w: %d links for %d resolved entities", ErrLinkCountViolation, len(links), resolved)
	}

	// Clear-then-insert, page by page.
	affected := make(map[int]bool)
	for _, link := range links {
		affected[link.SourcePage] = true
	}
	for page := range affected {
		delete(master.Links, page)
	}
	for _, link := range links {
		master.Links[link.SourcePage] = append(master.Links[link.SourcePage], link)
	}

	a.logger.Debug("links placed",
		slog.Int("links", len(links)),
		slog.Int("resolved_entities", resolved),
		slog.Int("pages_touched", len(affected)))

	return nil
}

// buildLinks converts the resolved set into link records in a fixed order:
// index items by number, then references in scan order.
func (a *Assembler) buildLinks(master *model.Master, targetOffset int, indexDoc string, items []*model.IndexItem, refs []*model.Reference) ([]model.LinkRecord, error) {
	var links []model.LinkRecord

	if len(items) > 0 {
		indexOffset, ok := master.Offsets[indexDoc]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, indexDoc)
		}
		for _, item := range items {
			if !item.Found || item.StartPage < 1 || item.Rect.IsEmpty() {
				continue
			}
			links = append(links, model.LinkRecord{
				SourceRect: item.Rect,
				SourcePage: indexOffset + item.Page - 1,
				TargetPage: targetOffset + item.StartPage - 1,
			})
		}
	}

	for _, ref := range refs {
		if !ref.Resolved() {
			continue
		}
		srcOffset, ok := master.Offsets[ref.SourceDoc]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, ref.SourceDoc)
		}
		links = append(links, model.LinkRecord{
			SourceRect: ref.Rects[0],
			SourcePage: srcOffset + ref.SourcePage - 1,
			TargetPage: targetOffset + ref.TopPage - 1,
		})
	}

	return links, nil
}

// resolvedCount counts entities carrying a destination.
func resolvedCount(items []*model.IndexItem, refs []*model.Reference) int {
	n := 0
	for _, item := range items {
		if item.Found && item.StartPage >= 1 {
			n++
		}
	}
	for _, ref := range refs {
		if ref.Resolved() {
			n++
		}
	}
	return n
}
