package build

import (
	"path/filepath"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/paperx/internal/config"
	"git.home.luguber.info/inful/paperx/internal/engine"
)

// Request holds all inputs of one build attempt. It is created fresh for
// every attempt and cannot be modified after construction.
type Request struct {
	id            string
	workspaceRoot string
	mainDocument  string
	outputDir     string
	engine        engine.Resolved
}

// NewRequest constructs a request with a new ID. Paths are made absolute.
func NewRequest(workspaceRoot, mainDocument, outputDir string, resolved engine.Resolved) Request {
	return Request{
		id:            uuid.NewString(),
		workspaceRoot: absPath(workspaceRoot),
		mainDocument:  absPath(mainDocument),
		outputDir:     absPath(outputDir),
		engine:        resolved,
	}
}

// RequestFor builds a request for cfg. outDirOverride replaces the
// configured output directory when non-empty.
func RequestFor(cfg *config.Config, resolved engine.Resolved, outDirOverride string) Request {
	out := cfg.OutputPath()
	if outDirOverride != "" {
		out = cfg.Resolve(outDirOverride)
	}
	return NewRequest(cfg.Root(), cfg.MainDocumentPath(), out, resolved)
}

// Next returns a new request with the same inputs and a fresh ID.
func (r Request) Next() Request {
	n := r
	n.id = uuid.NewString()
	return n
}

func (r Request) ID() string              { return r.id }
func (r Request) WorkspaceRoot() string   { return r.workspaceRoot }
func (r Request) MainDocument() string    { return r.mainDocument }
func (r Request) OutputDir() string       { return r.outputDir }
func (r Request) Engine() engine.Resolved { return r.engine }

// mainDir is the directory engines run in.
func (r Request) mainDir() string { return filepath.Dir(r.mainDocument) }

// jobName is the main document base name without extension.
func (r Request) jobName() string {
	base := filepath.Base(r.mainDocument)
	return base[:len(base)-len(filepath.Ext(base))]
}

func absPath(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
