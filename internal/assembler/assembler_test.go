package assembler

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/hyperlinklaw/recordlink/internal/model"
)

func docInfo(id string, pages int) model.DocumentInfo {
	return model.DocumentInfo{ID: id, Path: "/tmp/" + id, Pages: pages}
}

func resolvedItem(t *testing.T, no, indexPage, startPage int) *model.IndexItem {
	t.Helper()

	item, err := model.NewIndexItem(no, "Document "+string(rune('A'+no)), indexPage,
		model.Rectangle{X0: 72, Y0: float64(700 - no*20), X1: 300, Y1: float64(712 - no*20)})
	if err != nil {
		t.Fatalf("failed to build item: %v", err)
	}
	if err := item.Resolve(startPage, model.StateAutoLinked); err != nil {
		t.Fatalf("failed to resolve item: %v", err)
	}
	return item
}

func resolvedRef(t *testing.T, doc string, page, destPage int) *model.Reference {
	t.Helper()

	ref, err := model.NewReference(doc, page, model.RefTab, "3", "snippet",
		[]model.Rectangle{{X0: 100, Y0: 400, X1: 140, Y1: 412}})
	if err != nil {
		t.Fatalf("failed to build reference: %v", err)
	}
	ref.SetScored([]model.DestinationCandidate{{Page: destPage, Confidence: 1.0, Method: model.MethodExactTab}})
	ref.State = model.StateAutoLinked
	return ref
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	t.Run("offset table is the running total in assembly order", func(t *testing.T) {
		t.Parallel()

		briefs := []model.DocumentInfo{docInfo("brief-a.pdf", 10), docInfo("brief-b.pdf", 25)}
		target := docInfo("record.pdf", 120)

		master, err := New().Assemble(briefs, target, "brief-a.pdf", nil, nil)
		if err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		if master.Offsets["brief-a.pdf"] != 0 || master.Offsets["brief-b.pdf"] != 10 || master.Offsets["record.pdf"] != 35 {
			t.Errorf("offsets = %+v", master.Offsets)
		}
		if master.TotalPages != 155 {
			t.Errorf("total pages = %d, want 155", master.TotalPages)
		}
		if len(master.Documents) != 3 || master.Documents[2].ID != "record.pdf" {
			t.Errorf("documents = %+v, want target last", master.Documents)
		}
	})

	t.Run("items and references translate to global pages", func(t *testing.T) {
		t.Parallel()

		briefs := []model.DocumentInfo{docInfo("brief.pdf", 10)}
		target := docInfo("record.pdf", 50)
		items := []*model.IndexItem{resolvedItem(t, 1, 2, 7)}
		refs := []*model.Reference{resolvedRef(t, "brief.pdf", 5, 30)}

		master, err := New().Assemble(briefs, target, "brief.pdf", items, refs)
		if err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		if master.LinkCount() != 2 {
			t.Fatalf("link count = %d, want 2", master.LinkCount())
		}

		itemLinks := master.LinksOn(1) // index page 2, offset 0, 0-based
		if len(itemLinks) != 1 || itemLinks[0].TargetPage != 10+7-1 {
			t.Errorf("item links = %+v, want target global %d", itemLinks, 16)
		}
		refLinks := master.LinksOn(4)
		if len(refLinks) != 1 || refLinks[0].TargetPage != 10+30-1 {
			t.Errorf("ref links = %+v, want target global %d", refLinks, 39)
		}
	})

	t.Run("unresolved and rectangle-less entities place no links", func(t *testing.T) {
		t.Parallel()

		unresolved, err := model.NewIndexItem(2, "Missing Document", 1, model.Rectangle{X0: 1, Y0: 1, X1: 2, Y1: 2})
		if err != nil {
			t.Fatalf("failed to build item: %v", err)
		}
		noRect, err := model.NewIndexItem(3, "Unlocated Entry", 1, model.Rectangle{})
		if err != nil {
			t.Fatalf("failed to build item: %v", err)
		}
		if err := noRect.Resolve(9, model.StateAutoLinked); err != nil {
			t.Fatalf("failed to resolve item: %v", err)
		}
		scoredOnly := resolvedRef(t, "brief.pdf", 2, 20)
		scoredOnly.State = model.StateScored

		master, err := New().Assemble([]model.DocumentInfo{docInfo("brief.pdf", 5)}, docInfo("record.pdf", 30),
			"brief.pdf", []*model.IndexItem{unresolved, noRect}, []*model.Reference{scoredOnly})
		if err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		if master.LinkCount() != 0 {
			t.Errorf("link count = %d, want 0", master.LinkCount())
		}
	})

	t.Run("rebuilding from the same resolved set is idempotent", func(t *testing.T) {
		t.Parallel()

		briefs := []model.DocumentInfo{docInfo("brief.pdf", 10)}
		target := docInfo("record.pdf", 50)
		items := []*model.IndexItem{
			resolvedItem(t, 1, 2, 7),
			resolvedItem(t, 2, 2, 15),
		}

		a := New()
		master, err := a.Assemble(briefs, target, "brief.pdf", items, nil)
		if err != nil {
			t.Fatalf("assemble failed: %v", err)
		}
		before := master.LinksOn(1)

		for range 3 {
			if err := a.Relink(master, target, "brief.pdf", items, nil); err != nil {
				t.Fatalf("relink failed: %v", err)
			}
		}

		after := master.LinksOn(1)
		if !reflect.DeepEqual(before, after) {
			t.Errorf("links changed across relinks:\nbefore %+v\nafter  %+v", before, after)
		}
		if master.LinkCount() != 2 {
			t.Errorf("link count = %d, want 2 (no duplicates stacked)", master.LinkCount())
		}
	})

	t.Run("override rebuild changes only the overridden entity's link", func(t *testing.T) {
		t.Parallel()

		briefs := []model.DocumentInfo{docInfo("brief.pdf", 10)}
		target := docInfo("record.pdf", 50)
		items := []*model.IndexItem{
			resolvedItem(t, 1, 2, 5),
			resolvedItem(t, 3, 2, 10),
			resolvedItem(t, 4, 2, 22),
		}

		a := New()
		master, err := a.Assemble(briefs, target, "brief.pdf", items, nil)
		if err != nil {
			t.Fatalf("assemble failed: %v", err)
		}

		linkFor := func(item *model.IndexItem) *model.LinkRecord {
			for _, l := range master.LinksOn(1) {
				if l.SourceRect == item.Rect {
					return &l
				}
			}
			return nil
		}
		beforeOne := *linkFor(items[0])
		beforeFour := *linkFor(items[2])

		if err := items[1].Override(12); err != nil {
			t.Fatalf("override failed: %v", err)
		}
		if err := a.Relink(master, target, "brief.pdf", items, nil); err != nil {
			t.Fatalf("relink failed: %v", err)
		}

		if got := *linkFor(items[1]); got.TargetPage != 10+12-1 {
			t.Errorf("overridden link = %+v, want target global 21", got)
		}
		if got := *linkFor(items[0]); got != beforeOne {
			t.Errorf("item 1 link changed: %+v -> %+v", beforeOne, got)
		}
		if got := *linkFor(items[2]); got != beforeFour {
			t.Errorf("item 4 link changed: %+v -> %+v", beforeFour, got)
		}
		if master.LinkCount() != 3 {
			t.Errorf("link count = %d, want 3", master.LinkCount())
		}
	})

	t.Run("reference naming an unknown document fails", func(t *testing.T) {
		t.Parallel()

		refs := []*model.Reference{resolvedRef(t, "stranger.pdf", 1, 5)}
		_, err := New().Assemble([]model.DocumentInfo{docInfo("brief.pdf", 5)}, docInfo("record.pdf", 30),
			"brief.pdf", nil, refs)
		if !errors.Is(err, ErrUnknownDocument) {
			t.Errorf("err = %v, want ErrUnknownDocument", err)
		}
	})

	t.Run("no documents fails", func(t *testing.T) {
		t.Parallel()

		if _, err := New().Assemble(nil, model.DocumentInfo{}, "", nil, nil); !errors.Is(err, ErrNoDocuments) {
			t.Errorf("err = %v, want ErrNoDocuments", err)
		}
	})

	t.Run("links never exceed resolved entities across random resolution mixes", func(t *testing.T) {
		t.Parallel()

		rng := rand.New(rand.NewSource(1))
		briefs := []model.DocumentInfo{docInfo("brief.pdf", 20)}
		target := docInfo("record.pdf", 200)

		for trial := 0; trial < 50; trial++ {
			var items []*model.IndexItem
			var refs []*model.Reference
			for no := 1; no <= 1+rng.Intn(12); no++ {
				item, err := model.NewIndexItem(no, "Entry number with label", 1+rng.Intn(3),
					model.Rectangle{X0: 1, Y0: float64(no), X1: 50, Y1: float64(no) + 10})
				if err != nil {
					t.Fatalf("failed to build item: %v", err)
				}
				if rng.Intn(2) == 0 {
					if err := item.Resolve(1+rng.Intn(200), model.StateAutoLinked); err != nil {
						t.Fatalf("failed to resolve item: %v", err)
					}
				}
				items = append(items, item)
			}
			for i := 0; i < rng.Intn(8); i++ {
				ref := resolvedRef(t, "brief.pdf", 1+rng.Intn(20), 1+rng.Intn(200))
				if rng.Intn(3) == 0 {
					ref.State = model.StateNeedsReview
				}
				refs = append(refs, ref)
			}

			master, err := New().Assemble(briefs, target, "brief.pdf", items, refs)
			if err != nil {
				t.Fatalf("trial %d: assemble failed: %v", trial, err)
			}

			resolved := 0
			for _, it := range items {
				if it.Found {
					resolved++
				}
			}
			for _, r := range refs {
				if r.Resolved() {
					resolved++
				}
			}
			if master.LinkCount() > resolved {
				t.Fatalf("trial %d: %d links for %d resolved entities", trial, master.LinkCount(), resolved)
			}
		}
	})
}
