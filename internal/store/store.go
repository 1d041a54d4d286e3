// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store provides persistence backends for per-principal preferences.
// Every backend is a small key-value store; the selection core only ever uses
// the "model.selected" slot.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/traylinx/modelgate/internal/util"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// Store is a principal-scoped key-value persistence backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string
	DSN       string
	Table     string
	Principal string
}

// Open builds the backend described by opts. The file and sqlite backends live
// under the State Box; an empty sqlite DSN means "<state>/preferences/preferences.db".
func Open(ctx context.Context, opts Options, sb *util.StateBox) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", BackendFile:
		if sb == nil {
			return nil, fmt.Errorf("file backend requires a State Box")
		}
		return NewFileStore(sb, opts.Principal), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		dsn := opts.DSN
		if dsn == "" {
			if sb == nil {
				return nil, fmt.Errorf("sqlite backend requires a DSN or a State Box")
			}
			if err := sb.EnsureDir(sb.PreferencesDir()); err != nil {
				return nil, fmt.Errorf("failed to prepare sqlite directory: %w", err)
			}
			dsn = sb.ResolvePath("preferences/preferences.db")
		}
		return OpenSQLite(ctx, dsn, opts.Table, opts.Principal)
	case BackendPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return OpenPostgres(ctx, opts.DSN, opts.Table, opts.Principal)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", opts.Backend)
	}
}

// Slot binds one key of a Store. It is the persistence port of the selection store.
type Slot struct {
	store Store
	key   string
}

// NewSlot returns a slot for key in s.
func NewSlot(s Store, key string) *Slot {
	return &Slot{store: s, key: key}
}

// Load returns the stored value, or "" when nothing is stored.
func (s *Slot) Load(ctx context.Context) (string, error) {
	v, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// Save writes value to the slot.
func (s *Slot) Save(ctx context.Context, value string) error {
	return s.store.Set(ctx, s.key, value)
}
