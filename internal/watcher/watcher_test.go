// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/traylinx/modelgate/internal/config"
)

func startWatcher(t *testing.T, configPath string, onReload func(*config.Config)) *Watcher {
	t.Helper()
	w, err := NewWatcher(configPath, onReload)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	w.SetDebounce(50 * time.Millisecond)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load initial config: %v", err)
	}
	w.SetConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		if err := w.Stop(); err != nil {
			t.Logf("warning: failed to stop watcher: %v", err)
		}
	})
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// TestPolicyHotReload checks that editing the policy block triggers the callback.
func TestPolicyHotReload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("port: 8080\n"), 0o600); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	var reloads int32
	var last atomic.Value
	w := startWatcher(t, configPath, func(cfg *config.Config) {
		atomic.AddInt32(&reloads, 1)
		last.Store(cfg)
	})

	time.Sleep(100 * time.Millisecond)
	updated := "port: 8080\npolicy:\n  lock-role: ORG_LOCK\n"
	if err := os.WriteFile(configPath, []byte(updated), 0o600); err != nil {
		t.Fatalf("failed to write updated config: %v", err)
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&reloads) > 0 })

	cfg := last.Load().(*config.Config)
	if cfg.Policy.LockRole != "ORG_LOCK" {
		t.Errorf("expected lock role ORG_LOCK, got %q", cfg.Policy.LockRole)
	}
	if w.Config().Policy.LockRole != "ORG_LOCK" {
		t.Error("watcher did not record the new config")
	}
}

// TestInvalidConfigKeepsPrevious checks that a broken file does not trigger a reload.
func TestInvalidConfigKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloads int32
	w := startWatcher(t, configPath, func(*config.Config) { atomic.AddInt32(&reloads, 1) })

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte("port: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	if atomic.LoadInt32(&reloads) != 0 {
		t.Error("invalid config must not be applied")
	}
	if w.Config().Port != 8080 {
		t.Errorf("previous config lost, port = %d", w.Config().Port)
	}
}

// TestCatalogFileReload checks that editing the catalog file alone triggers a reload.
func TestCatalogFileReload(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	catalogPath := filepath.Join(dir, "models.yaml")
	catalog := "models:\n  - id: claude-3-5-sonnet\n    label: Claude 3.5 Sonnet\n    provider: claude\n"
	if err := os.WriteFile(catalogPath, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("catalog-file: models.yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloads int32
	startWatcher(t, configPath, func(*config.Config) { atomic.AddInt32(&reloads, 1) })

	time.Sleep(100 * time.Millisecond)
	catalog += "  - id: mistral-large-latest\n    label: Mistral Large\n    provider: mistral\n"
	if err := os.WriteFile(catalogPath, []byte(catalog), 0o600); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&reloads) > 0 })
}

func TestNewWatcher_EmptyPath(t *testing.T) {
	if _, err := NewWatcher("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestCosmeticEditIgnored checks that a comment-only edit does not call reload.
func TestCosmeticEditIgnored(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var reloads int32
	w := startWatcher(t, configPath, func(*config.Config) { atomic.AddInt32(&reloads, 1) })

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(configPath, []byte("# tuned by ops\nport: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	if atomic.LoadInt32(&reloads) != 0 {
		t.Errorf("cosmetic edit triggered %d reloads", reloads)
	}
	if w.Config().Port != 8080 {
		t.Errorf("port = %d", w.Config().Port)
	}
}
