package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/handlers"
)

func init() { Register(registerPalette) }

func registerPalette(r chi.Router, d deps.Deps) {
	r.Get("/api/palette", handlers.Palette(d))
}
