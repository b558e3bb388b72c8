package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/store"
)

// PageSweeper periodically drops page index entries left without highlights
type PageSweeper struct {
	store    store.HighlightStore
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewPageSweeper creates a new page sweeper
func NewPageSweeper(
	st store.HighlightStore,
	log logger.Logger,
	interval time.Duration,
) *PageSweeper {
	return &PageSweeper{
		store:    st,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep process
func (ps *PageSweeper) Start(ctx context.Context) error {
	// Run immediately on start
	if err := ps.Sweep(ctx); err != nil {
		ps.logger.Warn("initial page sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(ps.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ps.Sweep(ctx); err != nil {
					ps.logger.Error("page sweep failed",
						logger.Error(err))
				}
			case <-ps.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the sweeper
func (ps *PageSweeper) Stop() {
	close(ps.stopCh)
}

// Sweep runs one pass
func (ps *PageSweeper) Sweep(ctx context.Context) error {
	ps.logger.Debug("sweeping empty pages")

	swept, err := ps.store.SweepPages(ctx)
	if err != nil {
		return err
	}

	if swept > 0 {
		ps.logger.Info("page sweep completed",
			logger.Int("pages_swept", swept))
	} else {
		ps.logger.Debug("no pages to sweep")
	}

	return nil
}
