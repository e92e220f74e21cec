// Package errors provides the structured error type (PaperError) used across
// paperx for category-based classification, CLI exit codes and log attributes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a paperx error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// Engine discovery errors (raised before any subprocess is spawned)
	CategoryEngine ErrorCategory = "engine"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryFileSystem ErrorCategory = "filesystem"
	CategoryBusy       ErrorCategory = "busy"

	// Runtime and infrastructure errors
	CategoryWatch    ErrorCategory = "watch"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// Kind is the orchestration-level error taxonomy surfaced to callers.
type Kind string

const (
	KindEngineNotFound         Kind = "EngineNotFound"
	KindNoEngineAvailable      Kind = "NoEngineAvailable"
	KindCompileError           Kind = "CompileError"
	KindBusy                   Kind = "BusyError"
	KindWatchSubscriptionError Kind = "WatchSubscriptionError"
	KindIOError                Kind = "IOError"
	KindConfigError            Kind = "ConfigError"
)

// PaperError is a structured error with category, kind, severity and context
type PaperError struct {
	Category ErrorCategory `json:"category"`
	Kind     Kind          `json:"kind,omitempty"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PaperError
type ContextFields map[string]any

// Error implements the error interface
func (e *PaperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PaperError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PaperError) WithContext(key string, value any) *PaperError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithKind tags the error with an orchestration kind.
func (e *PaperError) WithKind(k Kind) *PaperError {
	e.Kind = k
	return e
}

// New creates a new PaperError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PaperError {
	return &PaperError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PaperError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PaperError {
	return &PaperError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// As finds the first PaperError in err's chain.
func As(err error) (*PaperError, bool) {
	var pe *PaperError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := As(err); ok {
		return pe.Category == category
	}
	return false
}

// IsKind checks if any PaperError in err's chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	if pe, ok := As(err); ok {
		return pe.Kind == kind
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PaperError
func GetCategory(err error) ErrorCategory {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return CategoryInternal
}
