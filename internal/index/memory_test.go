package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newHighlight(id, url string, age int) *domain.Highlight {
	return &domain.Highlight{
		ID:        id,
		URL:       url,
		Text:      "quick brown",
		Color:     "yellow",
		HexColor:  "#ffeb3b",
		Category:  domain.UncategorizedCategory,
		CreatedAt: base.Add(time.Duration(age) * time.Minute),
		Range: domain.NewStructuralRange(domain.StructuralRange{
			StartPath: "/html[1]/body[1]/p[1]/text()[1]", StartOffset: 4,
			EndPath: "/html[1]/body[1]/p[1]/text()[1]", EndOffset: 15,
		}),
	}
}

func TestNewMemoryIndex(t *testing.T) {
	index := NewMemoryIndex()
	if index == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if index.Count() != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v highlights", index.Count())
	}
	if index.Palette().Source != "builtin" {
		t.Errorf("NewMemoryIndex() palette source = %q, want builtin", index.Palette().Source)
	}
}

func TestSaveAndGetHighlights(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	// saved out of order, returned oldest first
	for _, h := range []*domain.Highlight{
		newHighlight("b", "https://a.test/page", 2),
		newHighlight("a", "https://a.test/page", 1),
		newHighlight("c", "https://a.test/other", 0),
	} {
		if err := index.SaveHighlight(ctx, h); err != nil {
			t.Fatalf("SaveHighlight(%s) = %v", h.ID, err)
		}
	}

	got, err := index.GetHighlights(ctx, "https://a.test/page")
	if err != nil {
		t.Fatalf("GetHighlights() = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("GetHighlights() = %v, want [a b]", ids(got))
	}
}

func TestFragmentIsIgnored(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	if err := index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page#section-2", 0)); err != nil {
		t.Fatalf("SaveHighlight() = %v", err)
	}

	got, _ := index.GetHighlights(ctx, "https://a.test/page")
	if len(got) != 1 {
		t.Fatalf("GetHighlights() without fragment = %d highlights, want 1", len(got))
	}
	if got[0].URL != "https://a.test/page" {
		t.Errorf("stored URL = %q, want fragment stripped", got[0].URL)
	}

	got, _ = index.GetHighlights(ctx, "https://a.test/page#other")
	if len(got) != 1 {
		t.Errorf("GetHighlights() with another fragment = %d highlights, want 1", len(got))
	}
}

func TestSaveHighlightDuplicate(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))
	err := index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 1))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("SaveHighlight() duplicate = %v, want ErrDuplicate", err)
	}

	// same id on another page is fine
	if err := index.SaveHighlight(ctx, newHighlight("a", "https://a.test/other", 1)); err != nil {
		t.Errorf("SaveHighlight() same id other page = %v, want nil", err)
	}
}

func TestSaveHighlightRejectsBlankText(t *testing.T) {
	h := newHighlight("a", "https://a.test/page", 0)
	h.Text = "  \n\t"

	if err := NewMemoryIndex().SaveHighlight(context.Background(), h); err == nil {
		t.Error("SaveHighlight() with blank text should fail")
	}
}

func TestReturnedHighlightsAreCopies(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))

	got, _ := index.GetHighlights(ctx, "https://a.test/page")
	got[0].Note = "mutated"

	again, _ := index.GetHighlights(ctx, "https://a.test/page")
	if again[0].Note != "" {
		t.Errorf("mutating a returned highlight changed the index: note = %q", again[0].Note)
	}
}

func TestUpdateHighlight(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))

	note := "remember this"
	color := "green"
	updated, err := index.UpdateHighlight(ctx, "https://a.test/page#x", domain.HighlightPatch{
		ID: "a", Note: &note, Color: &color,
	})
	if err != nil {
		t.Fatalf("UpdateHighlight() = %v", err)
	}
	if updated.Note != note || updated.Color != color {
		t.Errorf("UpdateHighlight() = %+v, want note and color set", updated)
	}
	if updated.HexColor != "#ffeb3b" {
		t.Errorf("UpdateHighlight() changed an unset field: hexColor = %q", updated.HexColor)
	}

	_, err = index.UpdateHighlight(ctx, "https://a.test/page", domain.HighlightPatch{ID: "missing"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("UpdateHighlight() unknown id = %v, want ErrNotFound", err)
	}
}

func TestDeleteHighlight(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))
	_ = index.SaveHighlight(ctx, newHighlight("b", "https://a.test/page", 1))

	remaining, err := index.DeleteHighlight(ctx, "https://a.test/page", "a")
	if err != nil {
		t.Fatalf("DeleteHighlight() = %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "b" {
		t.Errorf("DeleteHighlight() remaining = %v, want [b]", ids(remaining))
	}

	_, err = index.DeleteHighlight(ctx, "https://a.test/page", "a")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteHighlight() twice = %v, want ErrNotFound", err)
	}
}

func TestClearPage(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))
	_ = index.SaveHighlight(ctx, newHighlight("b", "https://a.test/page", 1))
	_ = index.SaveHighlight(ctx, newHighlight("c", "https://a.test/other", 2))

	n, err := index.ClearPage(ctx, "https://a.test/page#top")
	if err != nil || n != 2 {
		t.Fatalf("ClearPage() = (%d, %v), want (2, nil)", n, err)
	}
	if index.Count() != 1 {
		t.Errorf("Count() after ClearPage = %d, want 1", index.Count())
	}
}

func TestResetCategory(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	tests := []struct {
		id, url, category string
	}{
		{"a", "https://a.test/page", "work"},
		{"b", "https://a.test/page", "reading"},
		{"c", "https://a.test/other", "work"},
	}
	for i, tt := range tests {
		h := newHighlight(tt.id, tt.url, i)
		h.Category = tt.category
		_ = index.SaveHighlight(ctx, h)
	}

	n, err := index.ResetCategory(ctx, "work")
	if err != nil || n != 2 {
		t.Fatalf("ResetCategory() = (%d, %v), want (2, nil)", n, err)
	}

	page, _ := index.GetHighlights(ctx, "https://a.test/page")
	for _, h := range page {
		want := map[string]string{"a": domain.UncategorizedCategory, "b": "reading"}[h.ID]
		if h.Category != want {
			t.Errorf("highlight %s category = %q, want %q", h.ID, h.Category, want)
		}
	}
	if index.Count() != 3 {
		t.Errorf("ResetCategory() must keep records, Count() = %d", index.Count())
	}
}

func TestSweepPages(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_ = index.SaveHighlight(ctx, newHighlight("a", "https://a.test/page", 0))
	_ = index.SaveHighlight(ctx, newHighlight("b", "https://a.test/other", 0))
	_, _ = index.DeleteHighlight(ctx, "https://a.test/page", "a")

	pages, _ := index.Pages(ctx)
	if len(pages) != 2 {
		t.Fatalf("Pages() before sweep = %v, want 2 entries", pages)
	}

	n, err := index.SweepPages(ctx)
	if err != nil || n != 1 {
		t.Fatalf("SweepPages() = (%d, %v), want (1, nil)", n, err)
	}
	pages, _ = index.Pages(ctx)
	if len(pages) != 1 || pages[0] != "https://a.test/other" {
		t.Errorf("Pages() after sweep = %v", pages)
	}
}

func TestUpdatePalette(t *testing.T) {
	index := NewMemoryIndex()
	if !index.GetLastReload().IsZero() {
		t.Error("GetLastReload() should be zero before any reload")
	}

	p := &domain.Palette{
		Colors:     []domain.Color{{Name: "red", Hex: "#ff0000"}},
		Default:    "red",
		Categories: []string{domain.UncategorizedCategory},
		Source:     "palette.yaml",
	}
	index.UpdatePalette(p)

	if index.Palette() != p {
		t.Error("Palette() did not return the updated palette")
	}
	if index.GetLastReload().IsZero() {
		t.Error("GetLastReload() should be set after UpdatePalette")
	}
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()

	var wg sync.WaitGroup

	// Concurrent writes
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = index.SaveHighlight(ctx, newHighlight(fmt.Sprintf("h%d", i), "https://a.test/page", i))
		}(i)
	}

	// Concurrent reads
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = index.GetHighlights(ctx, "https://a.test/page")
			_ = index.Palette()
		}()
	}

	wg.Wait()

	if index.Count() != 50 {
		t.Errorf("Count() after concurrent saves = %d, want 50", index.Count())
	}
}

func ids(hs []*domain.Highlight) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.ID
	}
	return out
}
