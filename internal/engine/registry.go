package engine

import (
	"slices"
	"strings"
)

// Name identifies an engine in the registry.
type Name string

const (
	Tectonic Name = "tectonic"
	Latexmk  Name = "latexmk"
	PDFLaTeX Name = "pdflatex"
	LuaLaTeX Name = "lualatex"
	XeLaTeX  Name = "xelatex"
)

// Argument template placeholders substituted by Spec.CommandArgs.
const (
	PlaceholderMain   = "{main}"
	PlaceholderOutDir = "{outdir}"
)

// Spec describes one engine. Specs are values in a static table and are
// never mutated after the registry is built.
type Spec struct {
	Name                 Name
	Executables          []string
	SupportsBibliography bool
	RequiresMultiPass    bool
	// Args is the argument template for one pass, relative to the main
	// document directory.
	Args []string
	// FatalMarkers classify a pass as failed even when the exit code is 0.
	// A marker matches anywhere in a line; one starting with LineStart
	// matches only at the beginning of a line.
	FatalMarkers []string
}

// LineStart anchors a fatal marker to the start of a log line.
const LineStart = "^"

// CommonFatalMarkers apply to every engine and to the bibliography tool.
var CommonFatalMarkers = []string{
	"! LaTeX Error:",
	"! Emergency stop.",
	"! Undefined control sequence.",
	"Fatal error occurred",
	"==> Fatal error occurred",
	"I couldn't open database file",
	"I couldn't open file name",
	"No pages of output.",
}

// CommandArgs expands the argument template for the given main document
// (base name) and absolute output directory.
func (s Spec) CommandArgs(mainDoc, outDir string) []string {
	args := make([]string, 0, len(s.Args))
	r := strings.NewReplacer(PlaceholderMain, mainDoc, PlaceholderOutDir, outDir)
	for _, a := range s.Args {
		args = append(args, r.Replace(a))
	}
	return args
}

// Markers returns engine-specific markers followed by the common ones.
func (s Spec) Markers() []string {
	out := make([]string, 0, len(s.FatalMarkers)+len(CommonFatalMarkers))
	out = append(out, s.FatalMarkers...)
	return append(out, CommonFatalMarkers...)
}

// Registry is an ordered, read-only table of engine specs. Order is the
// default resolution order.
type Registry struct {
	specs []Spec
}

// NewRegistry builds a registry from specs in default preference order.
func NewRegistry(specs ...Spec) *Registry {
	return &Registry{specs: slices.Clone(specs)}
}

// DefaultRegistry returns the built-in engines, fastest and most
// self-contained first.
func DefaultRegistry() *Registry {
	latexArgs := []string{"-interaction=nonstopmode", "-file-line-error", "-output-directory=" + PlaceholderOutDir, PlaceholderMain}
	return NewRegistry(
		Spec{
			Name:        Tectonic,
			Executables: []string{"tectonic"},
			Args:        []string{"-X", "compile", PlaceholderMain, "--outdir", PlaceholderOutDir, "--keep-logs", "--keep-intermediates"},
			// tectonic reruns and drives bibtex/biber internally
			FatalMarkers: []string{LineStart + "error: ", "halted on potentially-recoverable error"},
		},
		Spec{
			Name:         Latexmk,
			Executables:  []string{"latexmk", "latexmk.pl"},
			Args:         []string{"-pdf", "-interaction=nonstopmode", "-output-directory=" + PlaceholderOutDir, PlaceholderMain},
			FatalMarkers: []string{"Latexmk: Errors,"},
		},
		Spec{
			Name:                 PDFLaTeX,
			Executables:          []string{"pdflatex"},
			SupportsBibliography: true,
			RequiresMultiPass:    true,
			Args:                 latexArgs,
		},
		Spec{
			Name:                 LuaLaTeX,
			Executables:          []string{"lualatex"},
			SupportsBibliography: true,
			RequiresMultiPass:    true,
			Args:                 latexArgs,
		},
		Spec{
			Name:                 XeLaTeX,
			Executables:          []string{"xelatex"},
			SupportsBibliography: true,
			RequiresMultiPass:    true,
			Args:                 latexArgs,
		},
	)
}

// Lookup returns the spec registered under name (case-insensitive).
func (r *Registry) Lookup(name string) (Spec, bool) {
	n := Name(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range r.specs {
		if s.Name == n {
			return s, true
		}
	}
	return Spec{}, false
}

// Names returns the engine names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, string(s.Name))
	}
	return out
}

// Specs returns a copy of the registered specs in registry order.
func (r *Registry) Specs() []Spec {
	return slices.Clone(r.specs)
}
