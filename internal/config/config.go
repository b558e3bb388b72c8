package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline, includes focus polling

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	StoreBackend string // "redis" | "sqlite" | "memory"
	SQLitePath   string // database file when StoreBackend is sqlite

	PaletteFile    string        // optional palette.yaml, empty = built-in palette
	PaletteWatch   bool          // reload the palette when the file changes
	ReloadInterval time.Duration // interval to reload the palette file (default: 1h)
	SweepInterval  time.Duration // interval to sweep empty pages (default: 24h)

	FocusInterval time.Duration // wait between focus attempts
	FocusAttempts int           // focus attempts before giving up
	MaxBodyBytes  int64         // max size of a posted document

	// Rate limiting of write routes
	RateBurst      int // tokens per client
	RateRefillPerM int // tokens refilled per minute

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict infra routes to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	AllowedOrigins []string // optional, CORS origins allowed to call the API (e.g. "chrome-extension://*")
	TrustProxy     bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("HILITE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("HILITE_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("HILITE_REQUEST_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("HILITE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("HILITE_PRETTY_LOG", true),

		// Storage
		StoreBackend: strings.ToLower(getenv("HILITE_STORE_BACKEND", BackendRedis)),
		SQLitePath:   getenv("HILITE_SQLITE_PATH", "/data/hilite.db"),

		// Palette
		PaletteFile:    getenv("HILITE_PALETTE_FILE", ""), // Optional, empty = built-in palette
		PaletteWatch:   mustBool("HILITE_PALETTE_WATCH", true),
		ReloadInterval: mustDuration("HILITE_RELOAD_INTERVAL", time.Hour),
		SweepInterval:  mustDuration("HILITE_SWEEP_INTERVAL", 24*time.Hour),

		// Page operations
		FocusInterval: mustDuration("HILITE_FOCUS_INTERVAL", 100*time.Millisecond),
		FocusAttempts: getenvInt("HILITE_FOCUS_ATTEMPTS", 20),
		MaxBodyBytes:  int64(getenvInt("HILITE_MAX_BODY_BYTES", 5<<20)),

		RateBurst:      getenvInt("HILITE_RATE_BURST", 30),
		RateRefillPerM: getenvInt("HILITE_RATE_REFILL_PER_MIN", 60),

		// Redis tuning
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:   splitAndTrim(getenv("HILITE_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("HILITE_ALLOWED_CIDRS", "")),
		AllowedOrigins: splitAndTrim(getenv("HILITE_ALLOWED_ORIGINS", "")),
		TrustProxy:     mustBool("HILITE_TRUST_PROXY", false),
	}

	switch cfg.StoreBackend {
	case BackendRedis:
		// Redis connection is only required when it backs the store
		cfg.RedisAddr = requireEnv("HILITE_REDIS_ADDR")
		cfg.RedisUser = getenv("HILITE_REDIS_USERNAME", "default")
		cfg.RedisPasswordRequired = mustBool("HILITE_REDIS_PASSWORD_REQUIRED", true)
		cfg.RedisPassword = getenv("HILITE_REDIS_PASSWORD", "")
		cfg.RedisDB = requireEnvInt("HILITE_REDIS_DB")

		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: HILITE_REDIS_PASSWORD is required when HILITE_REDIS_PASSWORD_REQUIRED=true")
		}
	case BackendSQLite, BackendMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: Unknown HILITE_STORE_BACKEND %q (want redis, sqlite or memory)", cfg.StoreBackend))
	}

	if cfg.FocusAttempts < 1 {
		panic(fmt.Sprintf("❌ FATAL: HILITE_FOCUS_ATTEMPTS must be >= 1, got %d", cfg.FocusAttempts))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
