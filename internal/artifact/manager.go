package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// PointerFileName is the file in the output directory holding the current
// artifact record.
const PointerFileName = ".paperx-current.json"

// ErrNoArtifact is returned by Current when no build has succeeded yet.
var ErrNoArtifact = errors.New("no artifact yet")

// Record is the last successful artifact.
type Record struct {
	Path       string    `json:"path"`
	RecordedAt time.Time `json:"recorded_at"`
	BuildID    string    `json:"build_id,omitempty"`
}

// Manager tracks the output directory of a single workspace.
type Manager struct {
	outputDir string

	mu       sync.Mutex
	building bool
	current  *Record
}

// NewManager returns a manager for outputDir (absolute).
func NewManager(outputDir string) *Manager {
	return &Manager{outputDir: filepath.Clean(outputDir)}
}

// OutputDir returns the managed output directory.
func (m *Manager) OutputDir() string { return m.outputDir }

// LockPath returns the lock file guarding the output directory.
func (m *Manager) LockPath() string { return lockPathFor(m.outputDir) }

// Begin takes exclusive ownership of the output directory. The lock is a
// file lock, so a build or clean in another paperx process on the same
// workspace is refused too. The returned release function must be called
// once the operation has fully terminated. A BusyError is returned if any
// other holder has the directory.
func (m *Manager) Begin(operation string) (release func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.building {
		return nil, perrors.Busy(operation)
	}
	lock := &lockFile{path: m.LockPath()}
	if err := lock.acquire(); err != nil {
		if errors.Is(err, ErrLockHeld) {
			return nil, perrors.Busy(operation).WithContext("lock", lock.path)
		}
		return nil, perrors.IOError("lock output directory", lock.path, err)
	}
	m.building = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.building = false
			m.mu.Unlock()
			if err := lock.release(); err != nil {
				slog.Warn("Failed to release output lock", logfields.Path(lock.path), logfields.Error(err))
			}
		})
	}, nil
}

// Building reports whether this manager currently holds the output directory.
func (m *Manager) Building() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.building
}

// RecordSuccess makes path the current artifact. Only successful builds call
// it; a failed build leaves the previous pointer in place.
func (m *Manager) RecordSuccess(path, buildID string) (Record, error) {
	rec := Record{Path: path, RecordedAt: time.Now().UTC(), BuildID: buildID}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, perrors.InternalError("encode artifact pointer", err)
	}
	pointer := filepath.Join(m.outputDir, PointerFileName)
	if err := os.WriteFile(pointer, data, 0o644); err != nil {
		return Record{}, perrors.IOError("record artifact", pointer, err)
	}

	m.mu.Lock()
	m.current = &rec
	m.mu.Unlock()
	slog.Debug("Recorded artifact", logfields.Artifact(path), logfields.BuildID(buildID))
	return rec, nil
}

// Current returns the last recorded success. ErrNoArtifact is returned when
// nothing was recorded or the recorded file no longer exists.
func (m *Manager) Current() (Record, error) {
	m.mu.Lock()
	rec := m.current
	m.mu.Unlock()

	if rec == nil {
		loaded, err := m.load()
		if err != nil {
			return Record{}, err
		}
		rec = loaded
	}
	if _, err := os.Stat(rec.Path); err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNoArtifact
		}
		return Record{}, perrors.IOError("stat artifact", rec.Path, err)
	}
	return *rec, nil
}

func (m *Manager) load() (*Record, error) {
	pointer := filepath.Join(m.outputDir, PointerFileName)
	data, err := os.ReadFile(pointer)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoArtifact
		}
		return nil, perrors.IOError("read artifact pointer", pointer, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Path == "" {
		slog.Warn("Ignoring corrupt artifact pointer", logfields.Path(pointer))
		return nil, ErrNoArtifact
	}
	return &rec, nil
}

// Clean removes the output directory. The directory is first renamed to a
// sibling trash name so it disappears from its path in one step, then the
// trash is removed. Clean is refused while a build is in flight.
func (m *Manager) Clean() error {
	release, err := m.Begin("clean")
	if err != nil {
		return err
	}
	defer release()

	if _, err := os.Stat(m.outputDir); err != nil {
		if os.IsNotExist(err) {
			m.forget()
			return nil
		}
		return perrors.IOError("clean", m.outputDir, err)
	}

	trash := filepath.Join(filepath.Dir(m.outputDir),
		fmt.Sprintf(".%s.trash-%s", filepath.Base(m.outputDir), uuid.NewString()))
	if err := os.Rename(m.outputDir, trash); err != nil {
		return perrors.IOError("clean", m.outputDir, err)
	}
	m.forget()

	if err := os.RemoveAll(trash); err != nil {
		return perrors.IOError("clean", trash, fmt.Errorf("output moved aside but not removed: %w", err))
	}
	slog.Info("Removed output directory", logfields.OutputDir(m.outputDir))
	return nil
}

func (m *Manager) forget() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}
