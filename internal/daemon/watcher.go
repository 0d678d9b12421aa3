package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"maxbridge/internal/config"
)

// ConfigWatcher watches the config file and tells the operator when a
// restart is needed. The daemon does not hot-reload: account wiring (tokens,
// webhook subscriptions) is set up once at startup.
type ConfigWatcher struct {
	watcher    *fsnotify.Watcher
	configPath string
	logger     zerolog.Logger

	lastEvent time.Time
}

// NewConfigWatcher creates a watcher on the daemon's config file.
func NewConfigWatcher(logger zerolog.Logger) (*ConfigWatcher, error) {
	path, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}
	return NewConfigWatcherFor(path, logger)
}

// NewConfigWatcherFor creates a watcher on an explicit config path.
func NewConfigWatcherFor(path string, logger zerolog.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// watch the directory: editors and atomic renames replace the file inode
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	return &ConfigWatcher{
		watcher:    watcher,
		configPath: path,
		logger:     logger,
	}, nil
}

// Run consumes watch events until ctx is cancelled.
func (w *ConfigWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *ConfigWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	// editors fire bursts of events per save
	if time.Since(w.lastEvent) < time.Second {
		return
	}
	w.lastEvent = time.Now()
	w.logger.Info().Str("path", w.configPath).Msg("configuration changed on disk; restart to apply")
}
