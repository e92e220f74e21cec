package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Process exit codes.
const (
	ExitGeneral  = 1
	ExitUsage    = 2
	ExitNoEngine = 3
	ExitBusy     = 4
	ExitConfig   = 7
	ExitInternal = 10
	ExitBuild    = 11
	ExitRuntime  = 12
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation: ExitUsage,
	CategoryEngine:     ExitNoEngine,
	CategoryBusy:       ExitBusy,
	CategoryConfig:     ExitConfig,
	CategoryBuild:      ExitBuild,
	CategoryFileSystem: ExitBuild,
	CategoryWatch:      ExitRuntime,
	CategoryRuntime:    ExitRuntime,
	CategoryInternal:   ExitInternal,
}

var hints = map[Kind]string{
	KindEngineNotFound:         "install the engine or omit --engine to use the first available one",
	KindNoEngineAvailable:      "install tectonic (https://tectonic-typesetting.github.io) or a TeX Live distribution",
	KindBusy:                   "wait for the running build to finish and retry",
	KindConfigError:            "run paperx from the workspace root or pass --config",
	KindWatchSubscriptionError: "check that the watched directories exist and the inotify limits are high enough",
}

// CLIErrorAdapter turns errors into a message, an optional hint and an exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter writing to stderr.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, out: os.Stderr, exit: os.Exit}
}

// ExitCodeFor returns the exit code for err; 0 for nil.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	pe, ok := As(err)
	if !ok {
		return ExitGeneral
	}
	if code, ok := exitCodes[pe.Category]; ok {
		return code
	}
	return ExitGeneral
}

// FormatError renders err for the terminal. Compile errors carry the log
// excerpt on the following lines.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	pe, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return pe.Error()
	}

	msg := pe.Message
	switch pe.Category {
	case CategoryConfig, CategoryValidation, CategoryEngine:
	default:
		msg = fmt.Sprintf("%s: %s", pe.Category, pe.Message)
	}
	if excerpt, ok := pe.Context["log_excerpt"].(string); ok && excerpt != "" {
		msg += "\n" + excerpt
	}
	return msg
}

// Hint returns a suggested next step for err, or "".
func (a *CLIErrorAdapter) Hint(err error) string {
	if pe, ok := As(err); ok {
		return hints[pe.Kind]
	}
	return ""
}

// HandleError prints err and exits with its code. It returns for nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	if hint := a.Hint(err); hint != "" {
		_, _ = fmt.Fprintf(a.out, "hint: %s\n", hint)
	}
	a.exit(a.ExitCodeFor(err))
}

// shouldLog limits structured logging to failures the user cannot fix by
// editing the paper or the command line.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	pe, ok := As(err)
	if !ok {
		return true
	}
	return pe.Category == CategoryInternal || pe.Category == CategoryRuntime
}

func (a *CLIErrorAdapter) logError(err error) {
	pe, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(pe.Category))}
	if pe.Kind != "" {
		attrs = append(attrs, slog.String("kind", string(pe.Kind)))
	}
	if pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}
	level := slog.LevelError
	switch pe.Severity {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, pe.Message, attrs...)
}
