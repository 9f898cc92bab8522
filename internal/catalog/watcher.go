// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a local catalog file whenever it is written or replaced
// and hands each non-empty result to OnLoad.
type Watcher struct {
	path   string
	loader *Loader
	onLoad func(*Catalog)
	logger *zap.Logger
}

// NewWatcher creates a watcher for the catalog file at path.
func NewWatcher(path string, loader *Loader, onLoad func(*Catalog), logger *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: abs, loader: loader, onLoad: onLoad, logger: logger}, nil
}

// Run watches until ctx is cancelled. The parent directory is watched so
// that editors replacing the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("CATALOG_WATCH_START", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload(ctx)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("CATALOG_WATCH_ERROR", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cat, err := w.loader.Load(ctx, w.path)
	if err != nil {
		return
	}
	// A truncate-then-write shows up as an empty intermediate file.
	if cat.Empty() {
		w.logger.Debug("CATALOG_RELOAD_EMPTY", zap.String("path", w.path))
		return
	}
	w.onLoad(cat)
}
