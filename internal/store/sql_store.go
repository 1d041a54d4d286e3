// Copyright 2026 The modelgate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	log "github.com/sirupsen/logrus"
)

// DefaultTable is the preference table name used when none is configured.
const DefaultTable = "model_preferences"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Dialect captures the SQL differences between supported databases.
type Dialect int

const (
	// DialectSQLite uses "?" placeholders.
	DialectSQLite Dialect = iota
	// DialectPostgres uses "$n" placeholders.
	DialectPostgres
)

func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// SQLStore persists preferences in a relational table keyed by (principal, key).
type SQLStore struct {
	db        *sql.DB
	dialect   Dialect
	table     string
	principal string
}

// NewSQLStore wraps an open database. The table name must be a plain identifier,
// optionally schema-qualified.
func NewSQLStore(db *sql.DB, dialect Dialect, table, principal string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if principal == "" {
		principal = "default"
	}
	return &SQLStore{db: db, dialect: dialect, table: table, principal: principal}, nil
}

// OpenSQLite opens (creating if needed) a SQLite database and ensures the schema.
func OpenSQLite(ctx context.Context, path, table, principal string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return openSQL(ctx, db, DialectSQLite, table, principal)
}

// OpenPostgres connects through the pgx stdlib driver and ensures the schema.
func OpenPostgres(ctx context.Context, dsn, table, principal string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return openSQL(ctx, db, DialectPostgres, table, principal)
}

func openSQL(ctx context.Context, db *sql.DB, dialect Dialect, table, principal string) (*SQLStore, error) {
	s, err := NewSQLStore(db, dialect, table, principal)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debugf("Preference store ready (table %s, principal %s)", s.table, s.principal)
	return s, nil
}

// EnsureSchema creates the preference table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	principal TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (principal, key)
)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create preference table: %w", err)
	}
	return nil
}

// Get returns the value for key or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE principal = %s AND key = %s",
		s.table, s.dialect.placeholder(1), s.dialect.placeholder(2))

	var value string
	err := s.db.QueryRowContext(ctx, query, s.principal, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read preference %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (principal, key, value, updated_at) VALUES (%s, %s, %s, %s) "+
			"ON CONFLICT (principal, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		s.table,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3), s.dialect.placeholder(4))

	if _, err := s.db.ExecContext(ctx, query, s.principal, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write preference %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
