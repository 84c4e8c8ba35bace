// Package history persists completed sequence reports to a per
// workspace SQLite database so earlier runs stay inspectable.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Store provides durable storage for sequence reports.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Entry is one recorded sequence report.
type Entry struct {
	SequenceID string
	Mode       string
	Suite      string
	Result     string
	NumRuns    int
	NumPassing int
	NumFailing int
	StartedAt  time.Time
	Duration   time.Duration
	ReportJSON string
}

// Open creates or opens the history database at the given path.
// Applies required pragmas and migrations automatically; safe to call
// repeatedly.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to history database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append records one sequence report. Re-recording the same sequence
// id is silently ignored.
func (s *Store) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sequence_reports
		(sequence_id, mode, suite, result, num_runs, num_passing, num_failing, started_at, duration_ms, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sequence_id) DO NOTHING
	`,
		e.SequenceID,
		e.Mode,
		e.Suite,
		e.Result,
		e.NumRuns,
		e.NumPassing,
		e.NumFailing,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.Duration.Milliseconds(),
		e.ReportJSON,
	)
	if err != nil {
		return fmt.Errorf("append sequence report: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for the suite, newest first. An
// empty suite matches all suites.
func (s *Store) Recent(ctx context.Context, suite string, limit int) ([]Entry, error) {
	query := `
		SELECT sequence_id, mode, suite, result, num_runs, num_passing, num_failing, started_at, duration_ms, report_json
		FROM sequence_reports
	`
	args := []any{}
	if suite != "" {
		query += " WHERE suite = ?"
		args = append(args, suite)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sequence reports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(
			&e.SequenceID, &e.Mode, &e.Suite, &e.Result,
			&e.NumRuns, &e.NumPassing, &e.NumFailing,
			&startedAt, &durationMS, &e.ReportJSON,
		); err != nil {
			return nil, fmt.Errorf("scan sequence report: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		e.StartedAt = ts
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequence reports: %w", err)
	}
	return entries, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("history database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
