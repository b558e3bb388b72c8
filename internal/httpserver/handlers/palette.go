package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
)

type colorResponse struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

type paletteResponse struct {
	Colors     []colorResponse `json:"colors"`
	Default    string          `json:"default"`
	Categories []string        `json:"categories"`
	Source     string          `json:"source"`
}

// Palette returns the active palette.
func Palette(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := d.MemoryIndex.Palette()
		resp := paletteResponse{
			Colors:     make([]colorResponse, 0, len(p.Colors)),
			Default:    p.Default,
			Categories: p.Categories,
			Source:     p.Source,
		}
		for _, c := range p.Colors {
			resp.Colors = append(resp.Colors, colorResponse{Name: c.Name, Hex: c.Hex})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
