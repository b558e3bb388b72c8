package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/logger"
)

type highlightsResponse struct {
	URL        string              `json:"url"`
	Highlights []*domain.Highlight `json:"highlights"`
}

type countResponse struct {
	Count int `json:"count"`
}

type pagesResponse struct {
	Pages []string `json:"pages"`
}

// ListHighlights returns the highlights stored for ?url=, oldest first.
func ListHighlights(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := pageURL(r)
		if err != nil {
			writeError(w, d, err)
			return
		}
		hs, err := d.Store.GetHighlights(r.Context(), u)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, highlightsResponse{URL: domain.NormalizeURL(u), Highlights: nonNil(hs)})
	}
}

// SaveHighlight stores a highlight recorded by a client. Missing id,
// creation time and category are filled in and the color is resolved
// against the active palette.
func SaveHighlight(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var h domain.Highlight
		if err := decodeJSON(w, r, d, &h); err != nil {
			writeError(w, d, err)
			return
		}

		h.URL = domain.NormalizeURL(h.URL)
		h.Text = strings.TrimSpace(h.Text)
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if h.CreatedAt.IsZero() {
			h.CreatedAt = d.Now().UTC()
		}
		if strings.TrimSpace(h.Category) == "" {
			h.Category = domain.UncategorizedCategory
		}
		col, err := d.MemoryIndex.Palette().Resolve(h.Color)
		if err != nil {
			writeError(w, d, err)
			return
		}
		h.Color, h.HexColor = col.Name, col.Hex

		if err := h.Validate(); err != nil {
			writeError(w, d, badRequest("%v", err))
			return
		}
		if err := d.Store.SaveHighlight(r.Context(), &h); err != nil {
			writeError(w, d, err)
			return
		}

		d.Logger.Info("highlight saved",
			logger.String("highlight_id", h.ID),
			logger.String("page", h.URL))
		writeJSON(w, http.StatusCreated, &h)
	}
}

// UpdateHighlight applies a metadata patch to /{id}?url=.
func UpdateHighlight(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := pageURL(r)
		if err != nil {
			writeError(w, d, err)
			return
		}
		var patch domain.HighlightPatch
		if err := decodeJSON(w, r, d, &patch); err != nil {
			writeError(w, d, err)
			return
		}
		patch.ID = chi.URLParam(r, "id")

		// hexColor always follows the palette
		patch.HexColor = nil
		if patch.Color != nil {
			col, err := d.MemoryIndex.Palette().Resolve(*patch.Color)
			if err != nil {
				writeError(w, d, err)
				return
			}
			patch.Color, patch.HexColor = &col.Name, &col.Hex
		}
		if patch.Category != nil && strings.TrimSpace(*patch.Category) == "" {
			c := domain.UncategorizedCategory
			patch.Category = &c
		}

		h, err := d.Store.UpdateHighlight(r.Context(), u, patch)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, h)
	}
}

// DeleteHighlight removes /{id}?url= and returns what is left on the page.
func DeleteHighlight(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := pageURL(r)
		if err != nil {
			writeError(w, d, err)
			return
		}
		id := chi.URLParam(r, "id")
		remaining, err := d.Store.DeleteHighlight(r.Context(), u, id)
		if err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("highlight deleted",
			logger.String("highlight_id", id),
			logger.Int("remaining", len(remaining)))
		writeJSON(w, http.StatusOK, highlightsResponse{URL: domain.NormalizeURL(u), Highlights: nonNil(remaining)})
	}
}

// ClearPage removes every highlight of ?url=.
func ClearPage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := pageURL(r)
		if err != nil {
			writeError(w, d, err)
			return
		}
		n, err := d.Store.ClearPage(r.Context(), u)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// ResetCategory moves the highlights of /{category} to Uncategorized on
// every page.
func ResetCategory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := chi.URLParam(r, "category")
		if category == "" || category == domain.UncategorizedCategory {
			writeError(w, d, badRequest("category %q cannot be reset", category))
			return
		}
		n, err := d.Store.ResetCategory(r.Context(), category)
		if err != nil {
			writeError(w, d, err)
			return
		}
		d.Logger.Info("category reset",
			logger.String("category", category),
			logger.Int("moved", n))
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// Pages lists every page with stored highlights.
func Pages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ps, err := d.Store.Pages(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		if ps == nil {
			ps = []string{}
		}
		writeJSON(w, http.StatusOK, pagesResponse{Pages: ps})
	}
}

func nonNil(hs []*domain.Highlight) []*domain.Highlight {
	if hs == nil {
		return []*domain.Highlight{}
	}
	return hs
}
