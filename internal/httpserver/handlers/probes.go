package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/logger"
)

const pingTimeout = 2 * time.Second

type liveness struct {
	Status  string  `json:"status"`
	Backend string  `json:"backend"`
	Uptime  float64 `json:"uptime_seconds"`
	Build   build   `json:"build"`
}

type build struct {
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
	Go      string `json:"go,omitempty"`
}

type readiness struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Healthz never touches the store.
func Healthz(d deps.Deps) http.HandlerFunc {
	b := build{Version: d.Version, Commit: d.Commit, Date: d.BuildDate, Go: d.GoVersion}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, liveness{
			Status:  "ok",
			Backend: d.StoreBackend,
			Uptime:  d.Now().Sub(d.StartTime).Seconds(),
			Build:   b,
		})
	}
}

// Readyz is ready once the highlight store answers a ping.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.Warn("store not ready",
				logger.String("backend", d.StoreBackend),
				logger.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readiness{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, readiness{Ready: true})
	}
}
