// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher hot-reloads the configuration file and the model catalog
// file. Changes are debounced, re-parsed and handed to a reload callback; a
// broken file is logged and the previous configuration stays active.
package watcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/config"
	"github.com/traylinx/modelgate/internal/watcher/diff"
)

// DefaultDebounce is the quiet period after the last write before reloading.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches the config file (and the catalog file it names) for changes.
type Watcher struct {
	configPath string
	reload     func(*config.Config)
	prepare    func(*config.Config)
	debounce   time.Duration

	mu          sync.Mutex
	cfg         *config.Config
	lastHash    [sha256.Size]byte
	catalogHash [sha256.Size]byte

	fsw    *fsnotify.Watcher
	timer  *time.Timer
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWatcher creates a watcher for configPath. reload is called with every
// successfully parsed configuration that differs from the previous one.
func NewWatcher(configPath string, reload func(*config.Config)) (*Watcher, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		configPath: abs,
		reload:     reload,
		debounce:   DefaultDebounce,
		fsw:        fsw,
	}, nil
}

// SetDebounce overrides the debounce interval. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// SetPrepare registers fn to adjust every freshly loaded config (environment
// overrides) before it is compared and applied.
func (w *Watcher) SetPrepare(fn func(*config.Config)) {
	w.mu.Lock()
	w.prepare = fn
	w.mu.Unlock()
}

// SetConfig records the currently active configuration.
func (w *Watcher) SetConfig(cfg *config.Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg
	w.lastHash = fileHash(w.configPath)
	w.catalogHash = fileHash(w.catalogPathLocked())
}

// Config returns the last applied configuration.
func (w *Watcher) Config() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

func (w *Watcher) catalogPathLocked() string {
	if w.cfg == nil {
		return ""
	}
	return w.cfg.CatalogPath(w.configPath)
}

// Start begins watching. Directories are watched rather than files so that
// editors replacing the file by rename are seen.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := map[string]struct{}{filepath.Dir(w.configPath): {}}
	w.mu.Lock()
	if p := w.catalogPathLocked(); p != "" {
		dirs[filepath.Dir(p)] = struct{}{}
	}
	w.mu.Unlock()

	for dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
	log.Debugf("config watcher started for %s", w.configPath)
	return nil
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return abs == w.configPath || abs == w.catalogPathLocked()
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reloadNow)
}

// reloadNow re-reads the config and calls the reload callback when the config
// or catalog file content changed.
func (w *Watcher) reloadNow() {
	w.mu.Lock()
	prev := w.cfg
	configHash := fileHash(w.configPath)
	catalogHash := fileHash(w.catalogPathLocked())
	unchanged := configHash == w.lastHash && catalogHash == w.catalogHash
	w.mu.Unlock()
	if unchanged {
		return
	}

	next, err := config.LoadConfig(w.configPath)
	if err != nil {
		log.Errorf("config reload failed, keeping previous configuration: %v", err)
		return
	}

	w.mu.Lock()
	if w.prepare != nil {
		w.prepare(next)
	}
	w.cfg = next
	w.lastHash = fileHash(w.configPath)
	newCatalogHash := fileHash(w.catalogPathLocked())
	catalogChanged := newCatalogHash != w.catalogHash
	w.catalogHash = newCatalogHash
	w.mu.Unlock()

	if prev != nil && !catalogChanged && !diff.Changed(prev, next) {
		log.Debugf("config file %s rewritten without effective changes", w.configPath)
		return
	}
	for _, change := range diff.BuildConfigChangeDetails(prev, next) {
		log.Infof("config change: %s", change)
	}
	log.Info("configuration reloaded")
	if w.reload != nil {
		w.reload(next)
	}
}

func fileHash(path string) [sha256.Size]byte {
	if path == "" {
		return [sha256.Size]byte{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
