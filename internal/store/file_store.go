// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/modelgate/internal/util"
)

// FileStore persists a principal's preferences as one JSON document inside the
// State Box (preferences/<principal>.json). Writes are atomic.
type FileStore struct {
	sb   *util.StateBox
	path string
	mu   sync.Mutex
}

// NewFileStore returns a file-backed store for principal.
func NewFileStore(sb *util.StateBox, principal string) *FileStore {
	return &FileStore{sb: sb, path: sb.PreferencePath(principal)}
}

// Path returns the JSON document path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	doc := map[string]string{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse preferences %s: %w", f.path, err)
	}
	return doc, nil
}

// Get returns the value for key or ErrNotFound.
func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readLocked()
	if err != nil {
		return "", err
	}
	v, ok := doc[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key, preserving the document's other keys.
// A corrupt document is moved aside to <path>.corrupt and replaced.
func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readLocked()
	if err != nil {
		moved, errMove := util.Quarantine(f.sb, f.path)
		if errMove != nil {
			return fmt.Errorf("failed to write preferences: %w", errMove)
		}
		log.Warnf("replacing unreadable preferences document (kept as %s): %v", moved, err)
		doc = map[string]string{}
	}
	doc[key] = value

	if err := util.WriteJSONAtomic(f.sb, f.path, doc); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }
