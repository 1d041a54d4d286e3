// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util provides state directory and file helpers for the modelgate server.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// EnvStateDir overrides the state directory root.
	EnvStateDir = "MODELGATE_STATE_DIR"
	// EnvReadOnly set to "1" disables every write into the state directory.
	EnvReadOnly = "MODELGATE_READONLY"

	defaultStateDir = "~/.modelgate"
)

// StateBox resolves paths for all mutable application data: persisted
// preferences, the SQLite preference database and rotating logs.
type StateBox struct {
	rootPath string
	readOnly bool
	mu       sync.RWMutex
}

// NewStateBox creates a StateBox rooted at MODELGATE_STATE_DIR (default ~/.modelgate).
// MODELGATE_READONLY=1 puts it in read-only mode.
func NewStateBox() (*StateBox, error) {
	return NewStateBoxAt(os.Getenv(EnvStateDir))
}

// NewStateBoxAt creates a StateBox rooted at dir. An empty dir uses the default root.
// The read-only flag is still taken from the environment.
func NewStateBoxAt(dir string) (*StateBox, error) {
	if dir == "" {
		dir = defaultStateDir
	}

	resolvedPath, err := ExpandPath(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory: %w", err)
	}

	return &StateBox{
		rootPath: resolvedPath,
		readOnly: os.Getenv(EnvReadOnly) == "1",
	}, nil
}

// RootPath returns the resolved State Box root directory.
func (sb *StateBox) RootPath() string {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.rootPath
}

// IsReadOnly returns whether the State Box is in read-only mode.
func (sb *StateBox) IsReadOnly() bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.readOnly
}

// SetReadOnly toggles read-only mode.
func (sb *StateBox) SetReadOnly(readOnly bool) {
	sb.mu.Lock()
	sb.readOnly = readOnly
	sb.mu.Unlock()
}

// PreferencesDir returns the directory holding persisted selection documents.
func (sb *StateBox) PreferencesDir() string {
	return filepath.Join(sb.RootPath(), "preferences")
}

// LogsDir returns the directory for rotating log files.
func (sb *StateBox) LogsDir() string {
	return filepath.Join(sb.RootPath(), "logs")
}

// PreferencePath returns the JSON document path for a principal's preferences.
// The name is sanitized to prevent path traversal.
func (sb *StateBox) PreferencePath(principal string) string {
	sanitized := filepath.Base(strings.TrimSpace(principal))
	if sanitized == "" || sanitized == "." || sanitized == ".." || sanitized == string(filepath.Separator) {
		sanitized = "default"
	}
	if !strings.HasSuffix(sanitized, ".json") {
		sanitized += ".json"
	}
	return filepath.Join(sb.PreferencesDir(), sanitized)
}

// ResolvePath joins a relative path with the State Box root.
// Absolute and tilde paths are returned cleaned and expanded.
func (sb *StateBox) ResolvePath(relativePath string) string {
	if relativePath == "" {
		return sb.RootPath()
	}

	if strings.HasPrefix(relativePath, "~") || filepath.IsAbs(relativePath) {
		cleaned, err := ExpandPath(relativePath)
		if err != nil {
			return filepath.Clean(relativePath)
		}
		return cleaned
	}

	return filepath.Join(sb.RootPath(), relativePath)
}

// EnsureDir creates a directory with 0700 permissions if it doesn't exist.
func (sb *StateBox) EnsureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", path)
		}
		return nil
	}

	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat directory %s: %w", path, err)
	}

	if sb != nil && sb.IsReadOnly() {
		return ErrReadOnlyMode
	}

	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	return nil
}

// ExpandPath expands a leading "~" to the user's home directory and cleans the result.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}
