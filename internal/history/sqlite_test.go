package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/paperx/internal/build"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

func TestSQLiteStore_AppendAndRecent(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	require.NoError(t, store.Append(ctx, Entry{BuildID: "a", Engine: "pdflatex", Success: true, PassesRun: 3}))
	require.NoError(t, store.Append(ctx, Entry{BuildID: "b", Engine: "pdflatex", PassesRun: 5, ErrorKind: "CompileError", Message: "unstable references"}))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "b", entries[0].BuildID, "newest first")
	require.False(t, entries[0].Success)
	require.Equal(t, "unstable references", entries[0].Message)
	require.True(t, entries[1].Success)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestSQLiteStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".paperx", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), Entry{BuildID: "x", Engine: "tectonic", Success: true}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	entries, err := reopened.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "tectonic", entries[0].Engine)
}

func TestObserver_RecordsResult(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := build.Result{
		RequestID: "r1", Engine: "xelatex", PassesRun: 1, Duration: 1500 * time.Millisecond,
		ErrorKind: perrors.KindCompileError, Message: build.LabelCompileFailed, FinishedAt: finished,
	}
	Observer{Store: store, Trigger: "watch"}.BuildFinished(t.Context(), build.Request{}, res)

	entries, err := store.Recent(t.Context(), 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, "r1", e.BuildID)
	require.Equal(t, "watch", e.Trigger)
	require.Equal(t, int64(1500), e.DurationMS)
	require.Equal(t, "CompileError", e.ErrorKind)
	require.True(t, finished.Equal(e.FinishedAt))
}

func TestIsBusy_IgnoresOtherErrors(t *testing.T) {
	require.False(t, isBusy(errors.New("database is locked")))
	require.False(t, isBusy(nil))
}
