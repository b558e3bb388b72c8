package deps

import (
	"time"

	"github.com/MrSnakeDoc/hilite/internal/index"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/poll"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time     // for testing, defaults to time.Now
	AllowedHosts   []string             // Host globs allowed on infra routes
	AllowedCIDRS   []string             // IPs allowed to access healthz/readyz/infra/reload
	AllowedOrigins []string             // Origin globs answered with CORS headers
	TrustProxy     bool                 // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Store          store.HighlightStore // highlight persistence (redis, sqlite or memory)
	StoreBackend   string               // name of the configured backend, reported by /infra
	MemoryIndex    *index.MemoryIndex   // holds the active palette
	PaletteFile    string               // empty when running on the built-in palette
	ReloadTrigger  chan struct{}        // Channel to trigger a manual palette reload
	FocusPolicy    poll.Policy          // marker lookup retries for /api/render?focus=
	MaxBodyBytes   int64                // request body cap for JSON and HTML payloads
	RateBurst      int                  // write route bucket size per client
	RateRefillPerM int                  // write route tokens per client per minute
}

// Now returns the current time through TimeNow when set.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
