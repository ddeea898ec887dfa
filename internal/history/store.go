// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps an audit log of dispatched command lines in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store is closed")

// DefaultLimit applies when a query passes a limit below 1.
const DefaultLimit = 20

// Entry is one dispatched line and its outcome.
type Entry struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Line      string    `json:"line"`
	Command   string    `json:"command,omitempty"`
	Action    string    `json:"action,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is a SQLite-backed history log.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens or creates the database at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record appends an entry. A zero CreatedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO history (sender, line, command, action, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.Sender, e.Line, e.Command, e.Action, e.Success, e.Error, e.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("record history: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest entries first. An empty sender matches everyone.
func (s *Store) Recent(ctx context.Context, sender string, limit int) ([]Entry, error) {
	query := `SELECT id, sender, line, command, action, success, error, created_at FROM history`
	var args []any
	if sender != "" {
		query += ` WHERE sender = ?`
		args = append(args, sender)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, clampLimit(limit))
	return s.query(ctx, query, args...)
}

// Search returns the newest entries whose line starts with prefix.
func (s *Store) Search(ctx context.Context, prefix string, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, sender, line, command, action, success, error, created_at
		FROM history
		WHERE line LIKE ? ESCAPE '\'
		ORDER BY id DESC LIMIT ?
	`, escapeLike(prefix)+"%", clampLimit(limit))
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Close waits for running queries and releases the database. Later calls
// return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.Sender, &e.Line, &e.Command, &e.Action, &e.Success, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
