package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/config"
	"github.com/MrSnakeDoc/hilite/internal/httpserver"
	"github.com/MrSnakeDoc/hilite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/hilite/internal/index"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/poll"
	"github.com/MrSnakeDoc/hilite/internal/redis"
	"github.com/MrSnakeDoc/hilite/internal/scheduler"
	"github.com/MrSnakeDoc/hilite/internal/store"
	redisstore "github.com/MrSnakeDoc/hilite/internal/store/redis"
	"github.com/MrSnakeDoc/hilite/internal/store/sqlite"
	"github.com/MrSnakeDoc/hilite/internal/utils"
	"github.com/MrSnakeDoc/hilite/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    store.HighlightStore
	closer   io.Closer // backend connection, nil for the memory store
	memIndex *index.MemoryIndex
	reloader *scheduler.PaletteReloader
	sweeper  *scheduler.PageSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Memory index always holds the palette, and the highlights when no
	// external backend is configured.
	memIndex := index.NewMemoryIndex()

	// Open the store early - fail fast if unavailable
	st, closer, err := openStore(cfg, memIndex, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.StoreBackend, err)
		os.Exit(1)
	}
	loggerClient.Info("highlight store initialized",
		logger.String("backend", cfg.StoreBackend))

	// Create manual reload trigger channel
	var reloadTrigger chan struct{}
	if cfg.PaletteFile != "" {
		reloadTrigger = make(chan struct{}, 1)
		loggerClient.Info("palette file configured",
			logger.String("file", cfg.PaletteFile),
			logger.Bool("watch", cfg.PaletteWatch))
	} else {
		loggerClient.Info("palette file not configured, using built-in palette")
	}

	reloader := scheduler.NewPaletteReloader(
		cfg.PaletteFile,
		memIndex,
		loggerClient,
		cfg.ReloadInterval,
		cfg.PaletteWatch,
		reloadTrigger,
	)

	sweeper := scheduler.NewPageSweeper(st, loggerClient, cfg.SweepInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		Store:          st,
		StoreBackend:   cfg.StoreBackend,
		MemoryIndex:    memIndex,
		PaletteFile:    cfg.PaletteFile,
		ReloadTrigger:  reloadTrigger,
		FocusPolicy:    poll.Policy{Interval: cfg.FocusInterval, MaxAttempts: cfg.FocusAttempts},
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RateBurst:      cfg.RateBurst,
		RateRefillPerM: cfg.RateRefillPerM,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   server,
		store:    st,
		closer:   closer,
		memIndex: memIndex,
		reloader: reloader,
		sweeper:  sweeper,
	}
}

// openStore builds the configured highlight store. The returned closer
// releases the backend connection.
func openStore(cfg *config.Config, memIndex *index.MemoryIndex, log logger.Logger) (store.HighlightStore, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client, log.With(logger.String("store", "redis"))), client, nil

	case config.BackendSQLite:
		log.Info("Opening SQLite database", logger.String("path", cfg.SQLitePath))
		db, err := sqlite.Open(cfg.SQLitePath, log.With(logger.String("store", "sqlite")))
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil

	case config.BackendMemory:
		log.Warn("memory store configured, highlights are lost on restart")
		return memIndex, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Hilite v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start palette reloader (loads the palette and starts periodic refresh)
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start palette reloader: %w", err)
	}
	a.logger.Info("palette reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	// Start page sweeper
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start page sweeper: %w", err)
	}
	a.logger.Info("page sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.closer != nil {
		utils.MustClose(a.closer, a.cfg.StoreBackend, a.logger)
	}

	a.logger.Info("✅ Hilite stopped cleanly")
	return nil
}
