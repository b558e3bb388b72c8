package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/handlers"
)

func init() { Register(registerAnnotate) }

func registerAnnotate(r chi.Router, d deps.Deps) {
	limit := writeLimit(d)
	r.With(limit).Post("/api/annotate", handlers.Annotate(d))
	r.With(limit).Post("/api/render", handlers.Render(d))
}
