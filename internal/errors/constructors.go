package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PaperError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithKind(KindConfigError).
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *PaperError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration invalid").
		WithKind(KindConfigError).
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PaperError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithKind(KindConfigError).
		WithContext("field", field).
		WithContext("reason", reason)
}

// Engine resolution errors

func EngineNotFound(name string, candidates []string) *PaperError {
	return New(CategoryEngine, SeverityFatal, "engine "+name+" not found on PATH").
		WithKind(KindEngineNotFound).
		WithContext("engine", name).
		WithContext("candidates", candidates)
}

func NoEngineAvailable(order []string) *PaperError {
	return New(CategoryEngine, SeverityFatal, "no TeX engine found; install tectonic or TeX Live").
		WithKind(KindNoEngineAvailable).
		WithContext("probed", order)
}

// Build errors

// CompileError reports a failed or non-converging compilation. It is never
// fatal to the process: watch mode keeps running after one.
func CompileError(label, logExcerpt string, passesRun int) *PaperError {
	return New(CategoryBuild, SeverityError, label).
		WithKind(KindCompileError).
		WithContext("log_excerpt", logExcerpt).
		WithContext("passes_run", passesRun)
}

func EngineLaunchFailed(executable string, cause error) *PaperError {
	return Wrap(cause, CategoryRuntime, SeverityFatal, "failed to launch "+executable).
		WithContext("executable", executable)
}

func Busy(operation string) *PaperError {
	return New(CategoryBusy, SeverityError, operation+" refused: a build is in flight").
		WithKind(KindBusy).
		WithContext("operation", operation)
}

func IOError(operation, path string, cause error) *PaperError {
	return Wrap(cause, CategoryFileSystem, SeverityError, operation+" failed").
		WithKind(KindIOError).
		WithContext("operation", operation).
		WithContext("path", path)
}

// Watch errors

func WatchSubscription(path string, cause error) *PaperError {
	return Wrap(cause, CategoryWatch, SeverityFatal, "cannot establish filesystem watch").
		WithKind(KindWatchSubscriptionError).
		WithContext("path", path)
}

// Internal errors

func InternalError(message string, cause error) *PaperError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
