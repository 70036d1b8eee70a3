package scorer

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

// ResolveItems resolves each index item's destination page within the target
// record, in place. Resolution order per item:
//
//  1. an explicit *T<n> marker anywhere in the record (authoritative),
//  2. a "Tab <n>" heading inside a page's top band,
//  3. the item's label text appearing on a page, first page wins.
//
// Unresolved items keep Found == false and are reported, never dropped.
// EndPage is computed afterward for the resolved set.
func (s *Scorer) ResolveItems(items []*model.IndexItem) {
	for _, item := range items {
		page, viaMarker := s.itemDestination(item)
		if page == 0 {
			item.State = model.StateNeedsReview
			continue
		}
		item.Marker = viaMarker
		if err := item.Resolve(page, model.StateAutoLinked); err != nil {
			item.State = model.StateNeedsReview
		}
	}

	ComputeEndPages(items, s.index.Pages())

	resolved := 0
	for _, item := range items {
		if item.Found {
			resolved++
		}
	}
	s.logger.Debug("index items resolved",
		slog.Int("resolved", resolved),
		slog.Int("total", len(items)))
}

// itemDestination returns the item's 1-based destination page in the record,
// or 0, plus whether a planted marker located it.
func (s *Scorer) itemDestination(item *model.IndexItem) (int, bool) {
	if page := s.index.MarkerPage(item.Number); page > 0 {
		return page, true
	}

	heading := "tab " + strconv.Itoa(item.Number)
	for page := 1; page <= s.index.Pages(); page++ {
		if containsPhrase(s.index.TopText(page), heading) {
			return page, false
		}
	}

	label := normalizeText(item.Label)
	if label != "" {
		for page := 1; page <= s.index.Pages(); page++ {
			if strings.Contains(s.index.Text(page), label) {
				return page, false
			}
		}
	}

	return 0, false
}

// ComputeEndPages derives each resolved item's EndPage: the page before the
// next resolved item's StartPage (never before its own start), and the
// record's final page for the last item. It must be rerun whenever an
// item's StartPage changes, since a move shifts its neighbors' sections too.
func ComputeEndPages(items []*model.IndexItem, recordPages int) {
	var resolved []*model.IndexItem
	for _, item := range items {
		if item.Found && item.StartPage >= 1 {
			resolved = append(resolved, item)
		}
	}
	if len(resolved) == 0 {
		return
	}

	ordered := make([]*model.IndexItem, len(resolved))
	copy(ordered, resolved)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].StartPage < ordered[j].StartPage })

	for i, item := range ordered {
		if i < len(ordered)-1 {
			end := ordered[i+1].StartPage - 1
			if end < item.StartPage {
				end = item.StartPage
			}
			item.EndPage = end
		} else {
			item.EndPage = recordPages
		}
	}
}
