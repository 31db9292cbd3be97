package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LoadFunc re-reads the configuration, typically config.Load bound to the
// startup CLI so flag overrides survive a reload.
type LoadFunc func() (*Config, error)

// ReloadCallback is invoked after each reload attempt.
// cfg is nil when err is non-nil.
type ReloadCallback func(cfg *Config, err error)

// Watcher monitors a config file for changes and triggers reloads.
type Watcher struct {
	path     string
	load     LoadFunc
	callback ReloadCallback
	logger   *slog.Logger
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration. Default is 1 second.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a config file watcher.
func NewWatcher(path string, load LoadFunc, callback ReloadCallback, logger *slog.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     path,
		load:     load,
		callback: callback,
		logger:   logger.With("component", "config_watcher"),
		debounce: time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run reloads the configuration whenever the file settles after a change and
// returns nil once ctx is done. The parent directory is watched so that a
// file renamed over the config is still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(w.path), err)
	}

	// settle fires once no relevant event has arrived for w.debounce.
	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.touchesConfig(ev) {
				settle.Reset(w.debounce)
			}
		case <-settle.C:
			w.callback(w.load())
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// touchesConfig reports whether ev may have changed the config file contents.
func (w *Watcher) touchesConfig(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != filepath.Base(w.path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

// ParseLevel maps a config log level to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// LevelReloader returns a ReloadCallback that applies the reloaded log level.
// A failed reload keeps the current level.
func LevelReloader(level *slog.LevelVar, logger *slog.Logger) ReloadCallback {
	return func(cfg *Config, err error) {
		if err != nil {
			logger.Warn("config reload failed; keeping current settings", "err", err)
			return
		}
		level.Set(ParseLevel(cfg.Log.Level))
		logger.Info("config reloaded", "log_level", cfg.Log.Level)
	}
}
