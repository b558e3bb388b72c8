package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/hilite/internal/domain"
	"github.com/MrSnakeDoc/hilite/internal/index"
	"github.com/MrSnakeDoc/hilite/internal/logger"
	"github.com/MrSnakeDoc/hilite/internal/sources/palette"
)

// PaletteReloader keeps the active palette in sync with the palette file.
// Reloads happen on an interval, on a manual trigger and when the file changes.
type PaletteReloader struct {
	loader        *palette.Loader // nil when no file is configured
	mapper        *palette.Mapper
	index         *index.MemoryIndex
	logger        logger.Logger
	interval      time.Duration
	watch         bool
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewPaletteReloader creates a new palette reloader.
// An empty paletteFile keeps the built-in palette.
func NewPaletteReloader(
	paletteFile string,
	idx *index.MemoryIndex,
	log logger.Logger,
	interval time.Duration,
	watch bool,
	manualTrigger chan struct{},
) *PaletteReloader {
	var loader *palette.Loader
	if paletteFile != "" {
		loader = palette.NewLoader(paletteFile)
	}
	return &PaletteReloader{
		loader:        loader,
		mapper:        palette.NewMapper(),
		index:         idx,
		logger:        log,
		interval:      interval,
		watch:         watch,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the palette and begins the periodic reload process
func (pr *PaletteReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := pr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	var watcher *fsnotify.Watcher
	if pr.watch && pr.loader != nil {
		w, err := pr.newWatcher()
		if err != nil {
			pr.logger.Warn("palette file watch disabled", logger.Error(err))
		} else {
			watcher = w
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(pr.interval)
	go func() {
		defer ticker.Stop()
		if watcher != nil {
			defer func() { _ = watcher.Close() }()
		}
		for {
			select {
			case <-ticker.C:
				pr.reloadAndLog(ctx)
			case <-pr.manualTrigger:
				pr.logger.Info("manual reload triggered")
				pr.reloadAndLog(ctx)
			case event, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if !pr.isPaletteEvent(event) {
					continue
				}
				pr.logger.Info("palette file changed",
					logger.String("op", event.Op.String()))
				pr.reloadAndLog(ctx)
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				pr.logger.Warn("palette watcher error", logger.Error(err))
			case <-pr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (pr *PaletteReloader) Stop() {
	close(pr.stopCh)
}

// Reload loads the palette file and swaps it into the index.
// On failure the active palette is kept.
func (pr *PaletteReloader) Reload(_ context.Context) error {
	if pr.loader == nil {
		pr.index.UpdatePalette(domain.DefaultPalette())
		pr.logger.Debug("no palette file configured, using built-in palette")
		return nil
	}

	pr.logger.Info("reloading palette",
		logger.String("file", pr.loader.Path()))

	config, err := pr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load palette: %w", err)
	}

	p, err := pr.mapper.MapPalette(config, pr.loader.Path())
	if err != nil {
		return fmt.Errorf("failed to map palette: %w", err)
	}

	pr.index.UpdatePalette(p)

	pr.logger.Info("palette loaded",
		logger.Int("colors", len(p.Colors)),
		logger.Int("categories", len(p.Categories)),
		logger.String("default", p.Default))

	return nil
}

func (pr *PaletteReloader) reloadAndLog(ctx context.Context) {
	if err := pr.Reload(ctx); err != nil {
		pr.logger.Error("failed to reload palette",
			logger.Error(err))
	}
}

// newWatcher watches the directory holding the palette file, since editors
// and config mounts replace the file rather than write it in place.
func (pr *PaletteReloader) newWatcher() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(pr.loader.Path())); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch palette directory: %w", err)
	}
	return w, nil
}

func (pr *PaletteReloader) isPaletteEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(pr.loader.Path()) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename)
}
