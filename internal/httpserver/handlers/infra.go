package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
)

type componentStatus struct {
	OK         bool   `json:"ok"`
	Backend    string `json:"backend,omitempty"`
	Highlights *int   `json:"highlights,omitempty"`
	Pages      *int   `json:"pages,omitempty"`
	Colors     *int   `json:"colors,omitempty"`
	Source     string `json:"source,omitempty"`
	LastReload string `json:"last_reload,omitempty"`
	Impact     string `json:"impact,omitempty"`
	Error      string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of the store and the palette.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":   checkStore(r.Context(), d),
			"palette": paletteStatus(d),
		}
		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// Without a store nothing can be saved or restored.
	if s, ok := components["store"]; ok && !s.OK {
		return "critical"
	}
	// A palette from the builtin fallback still serves every request.
	if p, ok := components["palette"]; ok && !p.OK {
		return "degraded"
	}
	return "operational"
}

func checkStore(parent context.Context, d deps.Deps) componentStatus {
	if d.Store == nil {
		return componentStatus{OK: false, Impact: "highlights-unavailable", Error: "store not initialized"}
	}

	ctx, cancel := context.WithTimeout(parent, pingTimeout)
	defer cancel()

	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{
			OK:      false,
			Backend: d.StoreBackend,
			Impact:  "highlights-unavailable",
			Error:   err.Error(),
		}
	}

	st := componentStatus{OK: true, Backend: d.StoreBackend}
	if pages, err := d.Store.Pages(ctx); err == nil {
		n := len(pages)
		st.Pages = &n
	}
	if d.MemoryIndex != nil && d.Store == d.MemoryIndex {
		n := d.MemoryIndex.Count()
		st.Highlights = &n
	}
	return st
}

func paletteStatus(d deps.Deps) componentStatus {
	if d.MemoryIndex == nil {
		return componentStatus{OK: false, Impact: "builtin-colors-only", Error: "palette holder not initialized"}
	}

	p := d.MemoryIndex.Palette()
	colors := len(p.Colors)
	lastReload := "never"
	if t := d.MemoryIndex.GetLastReload(); !t.IsZero() {
		lastReload = t.Format("2006-01-02 15:04:05")
	}

	st := componentStatus{
		OK:         colors > 0,
		Colors:     &colors,
		Source:     p.Source,
		LastReload: lastReload,
	}
	if d.PaletteFile != "" && p.Source != d.PaletteFile {
		st.OK = false
		st.Impact = "builtin-colors-only"
		st.Error = "palette file not loaded"
	}
	return st
}
