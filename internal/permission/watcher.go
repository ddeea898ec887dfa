// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a grants file into a Store when it changes on disk.
// A file that fails to parse leaves the previous policy active.
type Watcher struct {
	path     string
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	pending time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	done    sync.WaitGroup
}

// NewWatcher prepares a watcher for path. Call Watch to start it.
func NewWatcher(path string, store *Store, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		watcher:  fw,
		debounce: debounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching. The directory is watched rather than the file so
// editors that replace the file by rename are picked up.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.done.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

func (w *Watcher) processEvents() {
	defer w.done.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("grants watcher error", "error", err)
		}
	}
}

func (w *Watcher) processPending() {
	defer w.done.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			due := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if due {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if due {
				w.Reload()
			}
		}
	}
}

// Reload reads the file now. It reports whether the policy was replaced.
func (w *Watcher) Reload() bool {
	p, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("keeping previous grants", "file", w.path, "error", err)
		return false
	}
	w.store.Set(p)
	w.logger.Info("grants reloaded", "file", w.path, "grants", len(p.Grants))
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
