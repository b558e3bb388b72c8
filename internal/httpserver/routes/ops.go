package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/mw"
)

func init() { Register(registerOps) }

// registerOps mounts the operator endpoints. Health checks only check the client
// IP; infra and reload also check the Host header.
func registerOps(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Get("/healthz", handlers.Healthz(d))
		r.Get("/readyz", handlers.Readyz(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
			r.Get("/infra", handlers.Infra(d))
			r.Post("/reload", handlers.Reload(d))
		})
	})
}
