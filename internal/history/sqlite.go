package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"git.home.luguber.info/inful/paperx/internal/build"
	"git.home.luguber.info/inful/paperx/internal/logfields"
	"git.home.luguber.info/inful/paperx/internal/retry"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	mu    sync.RWMutex
	retry retry.Policy
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection: an in-memory database is private to its connection
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, retry: retry.DefaultPolicy()}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		engine TEXT NOT NULL,
		build_trigger TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL,
		passes_run INTEGER NOT NULL,
		bibliography_runs INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		artifact_path TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_finished_at ON builds(finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds an entry.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	// a watch in another terminal may hold the write lock
	err := s.retry.Do(ctx, isBusy, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO builds (build_id, engine, build_trigger, success, passes_run, bibliography_runs, duration_ms, artifact_path, error_kind, message, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.BuildID, e.Engine, e.Trigger, e.Success, e.PassesRun, e.BibliographyRuns, e.DurationMS,
			e.ArtifactPath, e.ErrorKind, e.Message, e.FinishedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// isBusy reports a locked database.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, build_id, engine, build_trigger, success, passes_run, bibliography_runs, duration_ms, artifact_path, error_kind, message, finished_at
		 FROM builds ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var finished int64
		if err := rows.Scan(&e.ID, &e.BuildID, &e.Engine, &e.Trigger, &e.Success, &e.PassesRun, &e.BibliographyRuns,
			&e.DurationMS, &e.ArtifactPath, &e.ErrorKind, &e.Message, &finished); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.FinishedAt = time.UnixMilli(finished).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// FromResult converts a build result into a history entry.
func FromResult(res build.Result) Entry {
	return Entry{
		BuildID:          res.RequestID,
		Engine:           res.Engine,
		Success:          res.Success,
		PassesRun:        res.PassesRun,
		BibliographyRuns: res.BibliographyRuns,
		DurationMS:       res.DurationMS(),
		ArtifactPath:     res.ArtifactPath,
		ErrorKind:        string(res.ErrorKind),
		Message:          res.Message,
		FinishedAt:       res.FinishedAt,
	}
}

// Observer records every build result into a Store. Write failures are
// logged and never fail the build.
type Observer struct {
	Store   Store
	Trigger string
}

func (o Observer) BuildFinished(ctx context.Context, _ build.Request, res build.Result) {
	e := FromResult(res)
	e.Trigger = o.Trigger
	if err := o.Store.Append(ctx, e); err != nil {
		slog.Warn("Failed to record build history", logfields.BuildID(res.RequestID), logfields.Error(err))
	}
}
