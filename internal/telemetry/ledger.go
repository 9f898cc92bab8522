// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned when the ledger is used after Close.
var ErrClosed = errors.New("ledger closed")

// schema creates the usage table.
const schema = `
CREATE TABLE IF NOT EXISTS usage (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT    NOT NULL,
	backend       TEXT    NOT NULL,
	model         TEXT    NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	input_cost    REAL    NOT NULL,
	output_cost   REAL    NOT NULL,
	total_cost    REAL    NOT NULL,
	latency_ms    INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_created ON usage(created_at);
CREATE INDEX IF NOT EXISTS idx_usage_session ON usage(session_id);
`

// Usage is one recorded language model call. Costs are in dollars.
type Usage struct {
	SessionID    string        `json:"session_id"`
	Backend      string        `json:"backend"`
	Model        string        `json:"model"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	InputCost    float64       `json:"input_cost"`
	OutputCost   float64       `json:"output_cost"`
	TotalCost    float64       `json:"total_cost"`
	Latency      time.Duration `json:"latency_ns"`
	At           time.Time     `json:"at"`
}

// BackendTotals aggregates usage for one backend.
type BackendTotals struct {
	Calls        int64   `json:"calls"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// Totals aggregates the whole ledger.
type Totals struct {
	BackendTotals
	Sessions  int64                    `json:"sessions"`
	ByBackend map[string]BackendTotals `json:"by_backend"`
}

// Ledger is a SQLite-backed usage store. It is safe for concurrent use.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// RecordUsage appends one call to the ledger. A zero At is stamped with
// the current time.
func (l *Ledger) RecordUsage(ctx context.Context, u Usage) error {
	if l == nil || l.db == nil {
		return ErrClosed
	}
	if u.At.IsZero() {
		u.At = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage (session_id, backend, model, input_tokens, output_tokens,
			input_cost, output_cost, total_cost, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.SessionID, u.Backend, u.Model, u.InputTokens, u.OutputTokens,
		u.InputCost, u.OutputCost, u.TotalCost, u.Latency.Milliseconds(), u.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Totals aggregates every recorded call.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	t := Totals{ByBackend: make(map[string]BackendTotals)}
	if l == nil || l.db == nil {
		return t, ErrClosed
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT backend, COUNT(*), COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0), COALESCE(SUM(total_cost), 0)
		FROM usage GROUP BY backend`)
	if err != nil {
		return t, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var backend string
		var bt BackendTotals
		if err := rows.Scan(&backend, &bt.Calls, &bt.InputTokens, &bt.OutputTokens, &bt.TotalCost); err != nil {
			return t, fmt.Errorf("scan totals: %w", err)
		}
		t.ByBackend[backend] = bt
		t.Calls += bt.Calls
		t.InputTokens += bt.InputTokens
		t.OutputTokens += bt.OutputTokens
		t.TotalCost += bt.TotalCost
	}
	if err := rows.Err(); err != nil {
		return t, fmt.Errorf("scan totals: %w", err)
	}

	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM usage`).Scan(&t.Sessions); err != nil {
		return t, fmt.Errorf("count sessions: %w", err)
	}
	return t, nil
}

// Recent returns up to limit calls, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Usage, error) {
	if l == nil || l.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, backend, model, input_tokens, output_tokens,
			input_cost, output_cost, total_cost, latency_ms, created_at
		FROM usage ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var u Usage
		var latencyMs, createdMs int64
		if err := rows.Scan(&u.SessionID, &u.Backend, &u.Model, &u.InputTokens, &u.OutputTokens,
			&u.InputCost, &u.OutputCost, &u.TotalCost, &latencyMs, &createdMs); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		u.Latency = time.Duration(latencyMs) * time.Millisecond
		u.At = time.UnixMilli(createdMs)
		out = append(out, u)
	}
	return out, rows.Err()
}
