// Package storage keeps the history of solve sessions in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quizsolver/domain/entities"
	"quizsolver/domain/interfaces"

	_ "modernc.org/sqlite" // SQLite driver
)

// DBFileName is the database file created inside the history directory.
const DBFileName = "history.db"

// RunHistory is a RunStore backed by a single SQLite file
type RunHistory struct {
	db     *sql.DB
	dbPath string
}

// OpenRunHistory - opens or creates the history database inside dir
func OpenRunHistory(dir string) (*RunHistory, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	dbPath := filepath.Join(dir, DBFileName)
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; sessions finish concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	h := &RunHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *RunHistory) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *RunHistory) Close() error {
	return h.db.Close()
}

func (h *RunHistory) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		start_url TEXT NOT NULL,
		last_url TEXT,
		outcome TEXT NOT NULL,
		submissions INTEGER DEFAULT 0,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_email ON runs(email);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun - inserts or replaces a run record
func (h *RunHistory) SaveRun(ctx context.Context, record entities.RunRecord) error {
	query := `
	INSERT INTO runs (id, email, start_url, last_url, outcome, submissions, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		last_url = excluded.last_url,
		outcome = excluded.outcome,
		submissions = excluded.submissions,
		error = excluded.error,
		finished_at = excluded.finished_at
	`

	var finishedAt sql.NullTime
	if !record.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: record.FinishedAt.UTC(), Valid: true}
	}

	_, err := h.db.ExecContext(ctx, query,
		record.ID,
		record.Email,
		record.StartURL,
		record.LastURL,
		string(record.Outcome),
		record.Submissions,
		record.Error,
		record.StartedAt.UTC(),
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", record.ID, err)
	}
	return nil
}

// ListRuns - most recent runs first
func (h *RunHistory) ListRuns(ctx context.Context, limit int) ([]entities.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT id, email, start_url, last_url, outcome, submissions, error, started_at, finished_at
	FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []entities.RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetRun - returns entities.ErrRunNotFound for unknown ids
func (h *RunHistory) GetRun(ctx context.Context, id string) (entities.RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `
	SELECT id, email, start_url, last_url, outcome, submissions, error, started_at, finished_at
	FROM runs WHERE id = ?`, id)

	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.RunRecord{}, fmt.Errorf("%w: %s", entities.ErrRunNotFound, id)
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (entities.RunRecord, error) {
	var (
		record     entities.RunRecord
		outcome    string
		lastURL    sql.NullString
		errText    sql.NullString
		finishedAt sql.NullTime
	)

	err := s.Scan(
		&record.ID,
		&record.Email,
		&record.StartURL,
		&lastURL,
		&outcome,
		&record.Submissions,
		&errText,
		&record.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return entities.RunRecord{}, err
	}

	record.Outcome = entities.Outcome(outcome)
	record.LastURL = lastURL.String
	record.Error = errText.String
	if finishedAt.Valid {
		record.FinishedAt = finishedAt.Time
	}
	return record, nil
}

var _ interfaces.RunStore = (*RunHistory)(nil)
