// Package opener hands a file to the operating system's default viewer.
package opener

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a path in an external viewer.
type Opener interface {
	Open(path string) error
}

// System opens files with the platform launcher (xdg-open, open, or the
// Windows URL handler). The launcher is started and not waited for.
type System struct {
	// GOOS overrides runtime.GOOS; used by tests.
	GOOS string
	// Start starts the command; defaults to (*exec.Cmd).Start.
	Start func(cmd *exec.Cmd) error
}

// Command returns the launcher invocation for path.
func (s System) Command(path string) *exec.Cmd {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return exec.Command("open", path)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

func (s System) Open(path string) error {
	cmd := s.Command(path)
	start := s.Start
	if start == nil {
		start = (*exec.Cmd).Start
	}
	if err := start(cmd); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if cmd.Process != nil {
		go func() { _ = cmd.Wait() }()
	}
	return nil
}
