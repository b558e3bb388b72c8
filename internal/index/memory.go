package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

// MemoryIndex keeps highlights and the active palette in memory.
// It serves as the HighlightStore when no Redis backend is configured
// and always holds the palette the reloader last loaded.
type MemoryIndex struct {
	mu         sync.RWMutex
	pages      map[string]map[string]*domain.Highlight // URL -> ID -> Highlight
	palette    *domain.Palette
	lastReload time.Time // Timestamp of last palette reload
}

var _ store.HighlightStore = (*MemoryIndex)(nil)

// NewMemoryIndex creates a new memory index holding the built-in palette
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		pages:   make(map[string]map[string]*domain.Highlight),
		palette: domain.DefaultPalette(),
	}
}

// ─────────────────────────────────────────────────────────────────
// Highlight methods
// ─────────────────────────────────────────────────────────────────

// GetHighlights returns copies of a page's highlights in creation order
func (idx *MemoryIndex) GetHighlights(_ context.Context, url string) ([]*domain.Highlight, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	page := idx.pages[domain.NormalizeURL(url)]
	out := make([]*domain.Highlight, 0, len(page))
	for _, h := range page {
		cp := *h
		out = append(out, &cp)
	}
	domain.SortByCreation(out)
	return out, nil
}

// SaveHighlight stores a copy of h under its normalized URL
func (idx *MemoryIndex) SaveHighlight(_ context.Context, h *domain.Highlight) error {
	cp := *h
	cp.URL = domain.NormalizeURL(h.URL)
	if err := cp.Validate(); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	page, ok := idx.pages[cp.URL]
	if !ok {
		page = make(map[string]*domain.Highlight)
		idx.pages[cp.URL] = page
	}
	if _, exists := page[cp.ID]; exists {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, cp.ID)
	}
	page[cp.ID] = &cp
	return nil
}

// UpdateHighlight applies patch to a stored highlight
func (idx *MemoryIndex) UpdateHighlight(_ context.Context, url string, patch domain.HighlightPatch) (*domain.Highlight, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	h, ok := idx.pages[domain.NormalizeURL(url)][patch.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, patch.ID)
	}
	patch.Apply(h)
	cp := *h
	return &cp, nil
}

// DeleteHighlight removes a highlight and returns the remaining ones.
// The page entry stays until the next sweep.
func (idx *MemoryIndex) DeleteHighlight(ctx context.Context, url, id string) ([]*domain.Highlight, error) {
	key := domain.NormalizeURL(url)

	idx.mu.Lock()
	page := idx.pages[key]
	if _, ok := page[id]; !ok {
		idx.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(page, id)
	idx.mu.Unlock()

	return idx.GetHighlights(ctx, key)
}

// ClearPage removes every highlight of a page
func (idx *MemoryIndex) ClearPage(_ context.Context, url string) (int, error) {
	key := domain.NormalizeURL(url)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := len(idx.pages[key])
	delete(idx.pages, key)
	return n, nil
}

// ResetCategory moves all highlights of category to the uncategorized sentinel
func (idx *MemoryIndex) ResetCategory(_ context.Context, category string) (int, error) {
	if category == "" || category == domain.UncategorizedCategory {
		return 0, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := 0
	for _, page := range idx.pages {
		for _, h := range page {
			if h.Category == category {
				h.Category = domain.UncategorizedCategory
				n++
			}
		}
	}
	return n, nil
}

// Pages lists the URLs with an index entry
func (idx *MemoryIndex) Pages(_ context.Context) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	urls := make([]string, 0, len(idx.pages))
	for url := range idx.pages {
		urls = append(urls, url)
	}
	return urls, nil
}

// SweepPages drops page entries without highlights
func (idx *MemoryIndex) SweepPages(_ context.Context) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := 0
	for url, page := range idx.pages {
		if len(page) == 0 {
			delete(idx.pages, url)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds
func (idx *MemoryIndex) Ping(context.Context) error { return nil }

// Count returns the number of highlights across all pages
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := 0
	for _, page := range idx.pages {
		n += len(page)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────
// Palette methods
// ─────────────────────────────────────────────────────────────────

// UpdatePalette replaces the active palette
func (idx *MemoryIndex) UpdatePalette(p *domain.Palette) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.palette = p
	idx.lastReload = time.Now()
}

// Palette returns the active palette
func (idx *MemoryIndex) Palette() *domain.Palette {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.palette
}

// GetLastReload returns the timestamp of the last palette reload
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}
