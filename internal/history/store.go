// Package history records build results in a local SQLite database so that
// "paperx history" can list past builds across invocations.
package history

import (
	"context"
	"time"
)

// Entry is one recorded build.
type Entry struct {
	ID               int64
	BuildID          string
	Engine           string
	Trigger          string
	Success          bool
	PassesRun        int
	BibliographyRuns int
	DurationMS       int64
	ArtifactPath     string
	ErrorKind        string
	Message          string
	FinishedAt       time.Time
}

// Store persists build entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
