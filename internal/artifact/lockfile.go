package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLockHeld is returned when another process holds the output lock.
var ErrLockHeld = errors.New("output directory lock held")

// lockFile is an exclusive advisory lock on a file beside the output
// directory, so renaming the directory in Clean leaves the lock in place.
type lockFile struct {
	path string
	file *os.File
}

func lockPathFor(outputDir string) string {
	return filepath.Join(filepath.Dir(outputDir), "."+filepath.Base(outputDir)+".lock")
}

// acquire takes the lock without blocking. ErrLockHeld means another
// holder, in this or another process, has it.
func (l *lockFile) acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := platformLock(f); err != nil {
		_ = f.Close()
		return err
	}
	l.file = f
	return nil
}

// release unlocks and closes the file. The file itself stays on disk;
// unlinking it would let a waiter lock a stale inode.
func (l *lockFile) release() error {
	if l.file == nil {
		return nil
	}
	platformUnlock(l.file)
	err := l.file.Close()
	l.file = nil
	return err
}
