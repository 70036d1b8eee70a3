package model

import (
	"testing"
)

func TestFirstWins(t *testing.T) {
	t.Parallel()

	t.Run("first occurrence is kept", func(t *testing.T) {
		t.Parallel()
		items := []*IndexItem{
			{Number: 1, Label: "Affidavit of John Smith"},
			{Number: 2, Label: "Financial Statements"},
			{Number: 1, Label: "Affidavit (footer repeat)"},
			{Number: 3, Label: "Correspondence"},
			{Number: 2, Label: "Financials (rescan)"},
		}

		out := FirstWins(items, func(it *IndexItem) int { return it.Number })

		if len(out) != 3 {
			t.Fatalf("expected 3 items, got %d", len(out))
		}
		if out[0].Label != "Affidavit of John Smith" {
			t.Errorf("expected first occurrence kept, got %q", out[0].Label)
		}
		if out[1].Number != 2 || out[2].Number != 3 {
			t.Errorf("expected encounter order preserved, got %d then %d", out[1].Number, out[2].Number)
		}
	})

	t.Run("empty and single slices pass through", func(t *testing.T) {
		t.Parallel()
		if out := FirstWins([]int(nil), func(i int) int { return i }); len(out) != 0 {
			t.Errorf("expected empty result, got %v", out)
		}
		if out := FirstWins([]int{7}, func(i int) int { return i }); len(out) != 1 || out[0] != 7 {
			t.Errorf("expected single element preserved, got %v", out)
		}
	})

	t.Run("input slice is not mutated", func(t *testing.T) {
		t.Parallel()
		in := []int{1, 1, 2}
		out := FirstWins(in, func(i int) int { return i })
		if len(in) != 3 {
			t.Errorf("expected input length preserved, got %d", len(in))
		}
		if len(out) != 2 {
			t.Errorf("expected deduped output, got %v", out)
		}
	})
}
