package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyEngine     = "engine"
	KeyExecutable = "executable"
	KeyPass       = "pass"
	KeyPasses     = "passes"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPath       = "path"
	KeyOutputDir  = "output_dir"
	KeyArtifact   = "artifact"
	KeyOp         = "op"
	KeyKind       = "kind"
	KeySuccess    = "success"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr       { return slog.String(KeyBuildID, id) }
func Engine(name string) slog.Attr      { return slog.String(KeyEngine, name) }
func Executable(name string) slog.Attr  { return slog.String(KeyExecutable, name) }
func Pass(n int) slog.Attr              { return slog.Int(KeyPass, n) }
func Passes(n int) slog.Attr            { return slog.Int(KeyPasses, n) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func OutputDir(p string) slog.Attr      { return slog.String(KeyOutputDir, p) }
func Artifact(p string) slog.Attr       { return slog.String(KeyArtifact, p) }
func Op(op string) slog.Attr            { return slog.String(KeyOp, op) }
func Kind(k string) slog.Attr           { return slog.String(KeyKind, k) }
func Success(ok bool) slog.Attr         { return slog.Bool(KeySuccess, ok) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
