package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/utils"
)

// RateLimitConfig configures the per-client token bucket guarding write
// routes.
type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int              // forces a sweep when this many clients are tracked
	SweepInterval     time.Duration    // default 1m
	IdleTTL           time.Duration    // default 15m
	TrustProxy        bool             // resolve IP from proxy headers when true
	Now               func() time.Time // defaults to time.Now
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	c.Burst = max(c.Burst, 1)
	c.RefillPerIPPerMin = max(c.RefillPerIPPerMin, 1)
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// tokenBucket refills continuously at perSec tokens per second.
type tokenBucket struct {
	tokens   float64
	updated  time.Time
	lastSeen time.Time
}

// take spends one token if available. When empty it returns the wait until
// the next token.
func (b *tokenBucket) take(now time.Time, perSec, capacity float64) (ok bool, left int, wait time.Duration) {
	if dt := now.Sub(b.updated).Seconds(); dt > 0 {
		b.tokens = math.Min(capacity, b.tokens+dt*perSec)
		b.updated = now
	}
	if b.tokens >= 1 {
		b.tokens--
		b.lastSeen = now
		return true, int(b.tokens), 0
	}
	return false, 0, time.Duration((1 - b.tokens) / perSec * float64(time.Second))
}

type clientLimiter struct {
	cfg      RateLimitConfig
	perSec   float64
	capacity float64

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

func newClientLimiter(cfg RateLimitConfig) *clientLimiter {
	cfg = cfg.withDefaults()
	return &clientLimiter{
		cfg:       cfg,
		perSec:    float64(cfg.RefillPerIPPerMin) / 60,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*tokenBucket),
		lastSweep: cfg.Now(),
	}
}

func (l *clientLimiter) take(client string, now time.Time) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	full := l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries
	if full || now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.sweep(now)
	}

	b, ok := l.buckets[client]
	if !ok {
		b = &tokenBucket{tokens: l.capacity, updated: now, lastSeen: now}
		l.buckets[client] = b
	}
	return b.take(now, l.perSec, l.capacity)
}

// sweep forgets clients idle for longer than IdleTTL.
func (l *clientLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
	l.lastSweep = now
}

// RateLimit rejects clients that exhausted their bucket with 429, a JSON
// error body and a Retry-After header.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := newClientLimiter(cfg)
	limit := strconv.Itoa(l.cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, left, wait := l.take(utils.ClientIP(r, l.cfg.TrustProxy), l.cfg.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(left))
			if !ok {
				retry := max(int(math.Ceil(wait.Seconds())), 1)
				h.Set("Retry-After", strconv.Itoa(retry))
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
