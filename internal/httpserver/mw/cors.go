package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/hilite/internal/logger"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsHeaders = "Content-Type, X-Request-ID"
)

// CORS lets browser extensions and pages matching allowedOrigins call the
// API. Origins are globs ("chrome-extension://*", "https://*.example.com").
// With no origins configured no CORS header is sent, so browsers keep the
// same-origin policy.
func CORS(allowedOrigins []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := compilePatterns(allowedOrigins, log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !matchAny(patterns, origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")

			// preflight
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
