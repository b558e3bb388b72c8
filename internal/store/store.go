// Package store defines the persistence contract for highlights.
//
// Highlights are partitioned by normalized page URL; every implementation
// runs incoming URLs through domain.NormalizeURL.
package store

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/hilite/internal/domain"
)

var (
	// ErrNotFound is returned when a highlight id is unknown for a page.
	ErrNotFound = errors.New("highlight not found")

	// ErrDuplicate is returned when saving an id that already exists on a page.
	ErrDuplicate = errors.New("highlight already exists")
)

// HighlightStore persists highlights per page.
type HighlightStore interface {
	// GetHighlights returns the highlights of a page, oldest first.
	GetHighlights(ctx context.Context, url string) ([]*domain.Highlight, error)

	// SaveHighlight adds a new highlight; ids are unique per page.
	SaveHighlight(ctx context.Context, h *domain.Highlight) error

	// UpdateHighlight applies patch to an existing highlight and returns it.
	UpdateHighlight(ctx context.Context, url string, patch domain.HighlightPatch) (*domain.Highlight, error)

	// DeleteHighlight removes one highlight and returns those left on the page.
	DeleteHighlight(ctx context.Context, url, id string) ([]*domain.Highlight, error)

	// ClearPage removes every highlight of a page and returns how many went.
	ClearPage(ctx context.Context, url string) (int, error)

	// ResetCategory moves every highlight of category to
	// domain.UncategorizedCategory, on all pages.
	ResetCategory(ctx context.Context, category string) (int, error)

	// Pages lists the URLs that have an index entry.
	Pages(ctx context.Context) ([]string, error)

	// SweepPages drops index entries of pages left without highlights.
	SweepPages(ctx context.Context) (int, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
