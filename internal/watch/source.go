package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// DefaultQueueSize bounds the event queue between the listener and the loop.
const DefaultQueueSize = 64

// SourceConfig describes what a Source watches.
type SourceConfig struct {
	Root      string   // workspace root; ignore globs are relative to it
	Paths     []string // directories to watch, relative to Root or absolute
	OutputDir string   // never reported
	Ignore    []string // doublestar globs
	QueueSize int
}

// Source forwards fsnotify events for the workspace sources to a bounded
// queue. When the queue is full the event is dropped: a rebuild is already
// implied by the events still queued.
type Source struct {
	cfg   SourceConfig
	fs    *fsnotify.Watcher
	queue chan Event
}

// NewSource subscribes to every existing directory under cfg.Paths.
func NewSource(cfg SourceConfig) (*Source, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, perrors.WatchSubscription(cfg.Root, err)
	}
	cfg.Root = root
	if cfg.OutputDir != "" && !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(root, cfg.OutputDir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, perrors.WatchSubscription(root, err)
	}
	s := &Source{cfg: cfg, fs: fsw, queue: make(chan Event, cfg.QueueSize)}

	watched := 0
	for _, p := range cfg.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		st, err := os.Stat(p)
		if err != nil || !st.IsDir() {
			slog.Debug("Skipping watch path", logfields.Path(p))
			continue
		}
		if err := s.addRecursive(p); err != nil {
			_ = fsw.Close()
			return nil, perrors.WatchSubscription(p, err)
		}
		watched++
	}
	if watched == 0 {
		_ = fsw.Close()
		return nil, perrors.WatchSubscription(root, os.ErrNotExist)
	}
	return s, nil
}

// Events returns the queue drained by the Watcher. It is closed when Run
// returns.
func (s *Source) Events() <-chan Event { return s.queue }

// Run pumps notifications into the queue until ctx is done.
func (s *Source) Run(ctx context.Context) {
	defer close(s.queue)
	defer func() { _ = s.fs.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.fs.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (s *Source) handle(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || s.ignored(ev.Name) {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = s.addRecursive(ev.Name)
		}
	}
	select {
	case s.queue <- Event{Path: ev.Name, Op: ev.Op.String()}:
	default:
		slog.Debug("Event queue full; dropping", logfields.Path(ev.Name))
	}
}

func (s *Source) ignored(path string) bool {
	if s.cfg.OutputDir != "" && isWithin(s.cfg.OutputDir, path) {
		return true
	}
	if shouldIgnoreEvent(path) {
		return true
	}
	rel, err := filepath.Rel(s.cfg.Root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.cfg.Ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Source) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || s.ignored(path)) {
			return filepath.SkipDir
		}
		if err := s.fs.Add(path); err != nil {
			if path == root {
				return err
			}
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// shouldIgnoreEvent reports editor temp files, hidden files and OS litter.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	if base == "Thumbs.db" || base == "4913" { // vim write probe
		return true
	}
	return false
}
