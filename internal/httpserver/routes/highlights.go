package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/handlers"
)

func init() { Register(registerHighlights) }

func registerHighlights(r chi.Router, d deps.Deps) {
	limit := writeLimit(d)

	r.Route("/api/highlights", func(r chi.Router) {
		r.Get("/", handlers.ListHighlights(d))
		r.With(limit).Post("/", handlers.SaveHighlight(d))
		r.With(limit).Delete("/", handlers.ClearPage(d))
		r.With(limit).Patch("/{id}", handlers.UpdateHighlight(d))
		r.With(limit).Delete("/{id}", handlers.DeleteHighlight(d))
	})
	r.With(limit).Delete("/api/categories/{category}", handlers.ResetCategory(d))
	r.Get("/api/pages", handlers.Pages(d))
}
