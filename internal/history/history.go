// Package history keeps a local SQLite journal of orchestration
// batches: what was attempted, when, with which backup, and how each
// component fared. The journal is purely observational; the installer
// never reads it to make decisions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// FileName is the journal database kept under the install root.
const FileName = ".starforge-history.db"

// schema contains the DDL executed on first open. Using IF NOT EXISTS
// makes it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS batches (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    kind        TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP,
    ok          INTEGER,
    backup_path TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
    batch_id  INTEGER NOT NULL REFERENCES batches(id),
    component TEXT NOT NULL,
    state     TEXT NOT NULL,
    detail    TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (batch_id, component)
);
`

// Batch is one journal row describing an orchestration run.
type Batch struct {
	ID         int64
	Kind       string
	StartedAt  time.Time
	FinishedAt time.Time
	OK         bool
	Finished   bool
	BackupPath string
}

// Outcome is one component's terminal state within a batch.
type Outcome struct {
	Component string
	State     string
	Detail    string
}

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at dbPath, enabling WAL mode and a
// busy timeout, and applying the schema idempotently.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// One connection: SQLite has a single writer, and one connection
	// keeps the PRAGMA setup applying to every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// BeginBatch journals the start of a batch and returns its ID.
func (s *Store) BeginBatch(ctx context.Context, kind string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO batches (kind) VALUES (?)", kind)
	if err != nil {
		return 0, fmt.Errorf("history: begin batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: begin batch: %w", err)
	}
	return id, nil
}

// FinishBatch records the batch's overall result and backup path.
func (s *Store) FinishBatch(ctx context.Context, id int64, ok bool, backupPath string) error {
	const q = `
		UPDATE batches
		SET finished_at = CURRENT_TIMESTAMP, ok = ?, backup_path = ?
		WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, q, boolInt(ok), backupPath, id); err != nil {
		return fmt.Errorf("history: finish batch %d: %w", id, err)
	}
	return nil
}

// RecordOutcome upserts a component's terminal state for the batch.
func (s *Store) RecordOutcome(ctx context.Context, id int64, component, state, detail string) error {
	const q = `
		INSERT INTO outcomes (batch_id, component, state, detail)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(batch_id, component) DO UPDATE SET state = excluded.state, detail = excluded.detail`
	if _, err := s.db.ExecContext(ctx, q, id, component, state, detail); err != nil {
		return fmt.Errorf("history: record outcome %s=%s: %w", component, state, err)
	}
	return nil
}

// RecentBatches returns up to limit batches, newest first.
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	const q = `
		SELECT id, kind, started_at, finished_at, ok, backup_path
		FROM batches ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var (
			b          Batch
			started    string
			finished   sql.NullString
			ok         sql.NullInt64
			backupPath string
		)
		if err := rows.Scan(&b.ID, &b.Kind, &started, &finished, &ok, &backupPath); err != nil {
			return nil, fmt.Errorf("history: scan batch: %w", err)
		}
		b.StartedAt = parseTimestamp(started)
		if finished.Valid {
			b.Finished = true
			b.FinishedAt = parseTimestamp(finished.String)
		}
		b.OK = ok.Valid && ok.Int64 != 0
		b.BackupPath = backupPath
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Outcomes returns the per-component states journaled for a batch,
// ordered by component name.
func (s *Store) Outcomes(ctx context.Context, batchID int64) ([]Outcome, error) {
	const q = `
		SELECT component, state, detail FROM outcomes
		WHERE batch_id = ? ORDER BY component`
	rows, err := s.db.QueryContext(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("history: list outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.Component, &o.State, &o.Detail); err != nil {
			return nil, fmt.Errorf("history: scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// parseTimestamp handles the formats SQLite emits for
// CURRENT_TIMESTAMP. modernc.org/sqlite typically returns RFC 3339
// with a space separator.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
