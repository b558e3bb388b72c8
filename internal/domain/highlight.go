package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UncategorizedCategory is the sentinel a highlight's category falls back to
// when its category is deleted.
const UncategorizedCategory = "Uncategorized"

// Highlight is the persisted record of a user's text selection on a page.
//
// The DOM marker painted for it is a disposable projection; this record is
// the only source of truth.
type Highlight struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is unique among the highlights of one URL.
	ID string `json:"id"`

	// URL is the normalized page URL (fragment stripped).
	// It is the partition key.
	URL string `json:"url"`

	// Text is the whitespace-trimmed selection at creation time.
	// The PDF path also uses it to find the highlight again.
	Text string `json:"text"`

	// Range locates the selection inside the page.
	Range Range `json:"range"`

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// ─────────────────────────────
	// User metadata (mutable)
	// ─────────────────────────────

	// Color is a symbolic palette name, HexColor is derived from it.
	Color    string `json:"color"`
	HexColor string `json:"hexColor"`
	Note     string `json:"note,omitempty"`
	Category string `json:"category,omitempty"`
}

// Validate checks the invariants a stored highlight must satisfy.
func (h *Highlight) Validate() error {
	if h.ID == "" {
		return errors.New("highlight id is required")
	}
	if h.URL == "" {
		return errors.New("highlight url is required")
	}
	if strings.TrimSpace(h.Text) == "" {
		return errors.New("highlight text must not be blank")
	}
	if err := h.Range.Validate(); err != nil {
		return fmt.Errorf("highlight %s: %w", h.ID, err)
	}
	return nil
}

// HighlightPatch carries the mutable fields of an update.
// Nil fields are left untouched.
type HighlightPatch struct {
	ID       string  `json:"id"`
	Color    *string `json:"color,omitempty"`
	HexColor *string `json:"hexColor,omitempty"`
	Note     *string `json:"note,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Apply copies the set fields of p onto h.
func (p HighlightPatch) Apply(h *Highlight) {
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.HexColor != nil {
		h.HexColor = *p.HexColor
	}
	if p.Note != nil {
		h.Note = *p.Note
	}
	if p.Category != nil {
		h.Category = *p.Category
	}
}

// SortByCreation orders highlights by creation time, then id.
// Restoring in this order replays the page state each range was recorded on.
func SortByCreation(hs []*Highlight) {
	sort.SliceStable(hs, func(i, j int) bool {
		return createdBefore(hs[i], hs[j])
	})
}

func createdBefore(a, b *Highlight) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
