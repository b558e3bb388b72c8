package mw

import (
	"net/http"

	"github.com/gobwas/glob"

	"github.com/MrSnakeDoc/hilite/internal/logger"
)

// EnforceHost allows requests only if r.Host matches one of the allowed hosts.
// Patterns are globs, so "*.example.com" admits any subdomain.
// If allowedHosts is empty, it acts as a passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := compilePatterns(allowedHosts, log)
	if len(patterns) == 0 {
		log.Debug("EnforceHost: empty allowedHosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Debugf("EnforceHost: initialized with hosts=%v", allowedHosts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := r.Host
			if !matchAny(patterns, host) {
				log.Debugf("EnforceHost: Host %s REJECTED", host)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type pattern struct {
	raw string
	g   glob.Glob
}

// compilePatterns compiles every pattern, skipping invalid ones.
func compilePatterns(list []string, log logger.Logger) []pattern {
	out := make([]pattern, 0, len(list))
	for _, raw := range list {
		g, err := glob.Compile(raw)
		if err != nil {
			log.Warn("ignoring invalid pattern",
				logger.String("pattern", raw),
				logger.Error(err))
			continue
		}
		out = append(out, pattern{raw: raw, g: g})
	}
	return out
}

func matchAny(patterns []pattern, s string) bool {
	for _, p := range patterns {
		if p.g.Match(s) {
			return true
		}
	}
	return false
}
