package build

import (
	"time"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// Failure labels reported as CompileError messages.
const (
	LabelCompileFailed      = "compilation failed"
	LabelBibliography       = "bibliography failed"
	LabelUnstable           = "unstable references"
	LabelNoArtifact         = "no artifact produced"
	LabelMainDocumentAbsent = "main document not found"
)

// Result is the outcome of exactly one Request.
type Result struct {
	RequestID        string
	Engine           string
	Success          bool
	PassesRun        int
	BibliographyRuns int
	LogExcerpt       string
	ArtifactPath     string
	Duration         time.Duration
	FinishedAt       time.Time
	// ErrorKind and Message are set only when Success is false.
	ErrorKind perrors.Kind
	Message   string
}

// DurationMS returns the build duration in whole milliseconds.
func (r Result) DurationMS() int64 { return r.Duration.Milliseconds() }

// Err returns the failure as a CompileError, or nil for a successful result.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return perrors.CompileError(r.Message, r.LogExcerpt, r.PassesRun).
		WithContext("build_id", r.RequestID)
}
