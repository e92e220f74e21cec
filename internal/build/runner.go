package build

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// Command is one subprocess invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the process environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Output is the captured result of a command that started.
type Output struct {
	ExitCode int
	// Combined holds stdout and stderr interleaved in write order.
	Combined []byte
}

// Runner executes commands. Run returns an error only when the command
// could not be started; a non-zero exit is reported through Output.
type Runner interface {
	Run(cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec. Commands are not bound to a
// context: a running engine pass is never killed mid-compilation.
type ExecRunner struct{}

func (ExecRunner) Run(c Command) (Output, error) {
	// #nosec G204 -- executable comes from the engine registry probe
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	slog.Debug("Running command", logfields.Executable(c.Name), slog.String("args", strings.Join(c.Args, " ")), logfields.Path(c.Dir))
	err := cmd.Run()
	if err == nil {
		return Output{Combined: buf.Bytes()}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Output{ExitCode: exitErr.ExitCode(), Combined: buf.Bytes()}, nil
	}
	return Output{Combined: buf.Bytes()}, err
}
