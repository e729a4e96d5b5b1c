// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// =============================================================================
// HOT RELOAD
// =============================================================================

// Watcher keeps the current configuration and reloads it when the file
// changes. An invalid file is logged and the previous configuration stays.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	current atomic.Pointer[Config]

	mu   sync.Mutex
	subs []func(*Config)
}

// NewWatcher creates a watcher for path that starts out with initial.
func NewWatcher(path string, initial *Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   logger,
	}
	w.current.Store(initial)
	return w
}

// SetDebounce changes the settle time. Call before Run.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Current returns the active configuration. Callers must not modify it.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Reload reads the file now. On error the current configuration is kept.
func (w *Watcher) Reload() error {
	cfg, err := LoadFromPath(w.path)
	if err != nil {
		return err
	}
	w.current.Store(cfg)

	w.mu.Lock()
	subs := append(([]func(*Config))(nil), w.subs...)
	w.mu.Unlock()
	for _, fn := range subs {
		fn(cfg)
	}
	return nil
}

// Run watches the file's directory until ctx is done. Editors often replace
// files by rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching config", zap.String("path", w.path))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Warn("config reload rejected, keeping previous", zap.Error(err))
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.path))
		}
	}
}
