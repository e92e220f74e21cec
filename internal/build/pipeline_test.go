package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/paperx/internal/artifact"
	"git.home.luguber.info/inful/paperx/internal/engine"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// scriptedRunner dispatches commands to per-executable handlers and
// records every invocation.
type scriptedRunner struct {
	mu       sync.Mutex
	calls    []Command
	handlers map[string]func(Command) (Output, error)
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{handlers: map[string]func(Command) (Output, error){}}
}

func (r *scriptedRunner) on(name string, h func(Command) (Output, error)) *scriptedRunner {
	r.handlers[name] = h
	return r
}

func (r *scriptedRunner) Run(c Command) (Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	h := r.handlers[filepath.Base(c.Name)]
	r.mu.Unlock()
	if h == nil {
		return Output{}, fmt.Errorf("exec: %q: executable file not found in $PATH", c.Name)
	}
	return h(c)
}

func (r *scriptedRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if filepath.Base(c.Name) == name {
			n++
		}
	}
	return n
}

// outDirArg extracts the -output-directory value from latex-style args.
func outDirArg(args []string) string {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "-output-directory="); ok {
			return v
		}
	}
	return ""
}

// fakeLaTeX simulates a latex engine: the aux file gains \bibcite entries
// once a .bbl exists, and labels settle one pass after that.
func fakeLaTeX(withBib bool) func(Command) (Output, error) {
	return func(c Command) (Output, error) {
		out := outDirArg(c.Args)
		aux := filepath.Join(out, "main.aux")
		var b strings.Builder
		b.WriteString("\\relax\n")
		if withBib {
			b.WriteString("\\bibdata{../bib/references}\n")
			if _, err := os.Stat(filepath.Join(out, "main.bbl")); err == nil {
				b.WriteString("\\bibcite{knuth84}{1}\n")
			}
		}
		if err := os.WriteFile(aux, []byte(b.String()), 0o644); err != nil {
			return Output{}, err
		}
		if err := os.WriteFile(filepath.Join(out, "main.pdf"), []byte("%PDF-1.5 paper"), 0o644); err != nil {
			return Output{}, err
		}
		return Output{Combined: []byte("This is pdfTeX\nOutput written on main.pdf (1 page).\n")}, nil
	}
}

func fakeBibtex(c Command) (Output, error) {
	if err := os.WriteFile(filepath.Join(c.Dir, c.Args[0]+".bbl"), []byte("\\begin{thebibliography}{1}\n\\end{thebibliography}\n"), 0o644); err != nil {
		return Output{}, err
	}
	return Output{Combined: []byte("This is BibTeX\n")}, nil
}

type workspaceFixture struct {
	root string
	main string
	out  string
}

func newWorkspace(t *testing.T, withBib bool) workspaceFixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tex"), 0o755))
	main := filepath.Join(root, "tex", "main.tex")
	require.NoError(t, os.WriteFile(main, []byte("\\documentclass{article}\\begin{document}x\\end{document}\n"), 0o644))
	if withBib {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "bib"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "bib", "references.bib"), []byte("@book{knuth84,}\n"), 0o644))
	}
	return workspaceFixture{root: root, main: main, out: filepath.Join(root, "build")}
}

func resolved(t *testing.T, name engine.Name) engine.Resolved {
	t.Helper()
	spec, ok := engine.DefaultRegistry().Lookup(string(name))
	require.True(t, ok)
	return engine.Resolved{Spec: spec, Executable: spec.Executables[0]}
}

func newTestPipeline(ws workspaceFixture, r Runner, opts Options) *Pipeline {
	return NewPipeline(artifact.NewManager(ws.out), r, opts)
}

func TestRun_MultiPassWithBibliography(t *testing.T) {
	ws := newWorkspace(t, true)
	runner := newScriptedRunner().on("pdflatex", fakeLaTeX(true)).on("bibtex", fakeBibtex)
	p := newTestPipeline(ws, runner, DefaultOptions())

	req := NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX))
	res, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Success, res.LogExcerpt)
	require.GreaterOrEqual(t, res.PassesRun, 2)
	require.Equal(t, 3, res.PassesRun)
	require.Equal(t, 1, res.BibliographyRuns)
	require.Equal(t, req.ID(), res.RequestID)
	require.Equal(t, filepath.Join(ws.out, "main.pdf"), res.ArtifactPath)
	require.NoError(t, res.Err())

	// bibtex runs in the output dir and finds sources next to main.tex
	var bib Command
	for _, c := range runner.calls {
		if c.Name == "bibtex" {
			bib = c
		}
	}
	require.Equal(t, ws.out, bib.Dir)
	require.Contains(t, bib.Env[0], filepath.Join(ws.root, "tex"))

	cur, err := p.Artifacts().Current()
	require.NoError(t, err)
	require.Equal(t, res.ArtifactPath, cur.Path)
}

func TestRun_NoBibliographyReferencedSkipsTool(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("pdflatex", fakeLaTeX(false)).on("bibtex", fakeBibtex)
	p := newTestPipeline(ws, runner, DefaultOptions())

	res, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX)))
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 0, runner.count("bibtex"))
	// the second pass confirms the aux written by the first is stable
	require.Equal(t, 2, res.PassesRun)
}

func TestRun_UnstableReferences(t *testing.T) {
	ws := newWorkspace(t, false)
	pass := 0
	runner := newScriptedRunner().on("pdflatex", func(c Command) (Output, error) {
		pass++
		out := outDirArg(c.Args)
		_ = os.WriteFile(filepath.Join(out, "main.pdf"), []byte("%PDF"), 0o644)
		return Output{}, os.WriteFile(filepath.Join(out, "main.aux"), fmt.Appendf(nil, "\\newlabel{x}{%d}\n", pass), 0o644)
	})
	p := newTestPipeline(ws, runner, Options{MaxPasses: 4})

	res, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX)))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 4, res.PassesRun)
	require.Equal(t, perrors.KindCompileError, res.ErrorKind)
	require.Equal(t, LabelUnstable, res.Message)

	ce := res.Err()
	require.True(t, perrors.IsKind(ce, perrors.KindCompileError))
	require.Contains(t, ce.Error(), "unstable references")

	_, err = p.Artifacts().Current()
	require.ErrorIs(t, err, artifact.ErrNoArtifact)
}

func TestRun_FatalMarkerOverridesZeroExit(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("xelatex", func(c Command) (Output, error) {
		out := outDirArg(c.Args)
		_ = os.WriteFile(filepath.Join(out, "main.pdf"), []byte("%PDF"), 0o644)
		return Output{ExitCode: 0, Combined: []byte("line one\n! Undefined control sequence.\nl.3 \\foo\n")}, nil
	})
	p := newTestPipeline(ws, runner, DefaultOptions())

	res, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.XeLaTeX)))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, LabelCompileFailed, res.Message)
	require.True(t, strings.HasPrefix(res.LogExcerpt, "! Undefined control sequence."))
	require.Empty(t, res.ArtifactPath)
}

func TestRun_NonZeroExitFails(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("tectonic", func(Command) (Output, error) {
		return Output{ExitCode: 1, Combined: []byte("note: running TeX\n")}, nil
	})
	p := newTestPipeline(ws, runner, DefaultOptions())

	res, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.Tectonic)))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 1, res.PassesRun)
}

func TestRun_FailureKeepsPreviousArtifact(t *testing.T) {
	ws := newWorkspace(t, false)
	fail := false
	runner := newScriptedRunner().on("pdflatex", func(c Command) (Output, error) {
		if fail {
			return Output{ExitCode: 1, Combined: []byte("! LaTeX Error: File `x.sty' not found.\n")}, nil
		}
		return fakeLaTeX(false)(c)
	})
	p := newTestPipeline(ws, runner, DefaultOptions())
	req := NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX))

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.True(t, first.Success)

	fail = true
	second, err := p.Run(context.Background(), req.Next())
	require.NoError(t, err)
	require.False(t, second.Success)
	require.NotEqual(t, first.RequestID, second.RequestID)

	cur, err := p.Artifacts().Current()
	require.NoError(t, err)
	require.Equal(t, first.ArtifactPath, cur.Path)
	require.Equal(t, first.RequestID, cur.BuildID)
}

// auxOnly writes reference state but no PDF, like an engine that typeset
// nothing, and prints out.
func auxOnly(out string) func(Command) (Output, error) {
	return func(c Command) (Output, error) {
		dir := outDirArg(c.Args)
		return Output{Combined: []byte(out)}, os.WriteFile(filepath.Join(dir, "main.aux"), []byte("\\relax\n"), 0o644)
	}
}

func TestRun_StalePDFIsNeverTheArtifact(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		message string
	}{
		{"no pages of output", "This is pdfTeX\nNo pages of output.\nTranscript written on main.log.\n", LabelCompileFailed},
		{"silent pass without pdf", "This is pdfTeX\nTranscript written on main.log.\n", LabelNoArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newWorkspace(t, false)
			second := false
			runner := newScriptedRunner().on("pdflatex", func(c Command) (Output, error) {
				if second {
					return auxOnly(tt.output)(c)
				}
				return fakeLaTeX(false)(c)
			})
			p := newTestPipeline(ws, runner, DefaultOptions())
			req := NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX))

			first, err := p.Run(context.Background(), req)
			require.NoError(t, err)
			require.True(t, first.Success)
			// a leftover PDF from some other job must not be picked up either
			require.NoError(t, os.WriteFile(filepath.Join(ws.out, "appendix.pdf"), []byte("%PDF old"), 0o644))

			second = true
			res, err := p.Run(context.Background(), req.Next())
			require.NoError(t, err)
			require.False(t, res.Success)
			require.Equal(t, tt.message, res.Message)
			require.Empty(t, res.ArtifactPath)

			cur, err := p.Artifacts().Current()
			require.NoError(t, err)
			require.Equal(t, first.RequestID, cur.BuildID, "pointer must keep the last good build")
		})
	}
}

func TestFindArtifact_FallsBackToFreshPDF(t *testing.T) {
	out := t.TempDir()
	old := filepath.Join(out, "old.pdf")
	require.NoError(t, os.WriteFile(old, []byte("%PDF old"), 0o644))
	before, err := snapshotPDFs(out)
	require.NoError(t, err)
	require.Contains(t, before, old)

	got, err := findArtifact(out, "main", before)
	require.NoError(t, err)
	require.Empty(t, got)

	fresh := filepath.Join(out, "nested", "paper.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(fresh), 0o755))
	require.NoError(t, os.WriteFile(fresh, []byte("%PDF new"), 0o644))
	got, err = findArtifact(out, "main", before)
	require.NoError(t, err)
	require.Equal(t, fresh, got)
}

func TestRun_LaunchFailureIsFatal(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner() // nothing registered: every launch fails
	p := newTestPipeline(ws, runner, DefaultOptions())

	_, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.LuaLaTeX)))
	require.Error(t, err)
	require.True(t, perrors.IsCategory(err, perrors.CategoryRuntime))
	require.Len(t, runner.calls, 1, "pipeline aborts at the first launch failure")
	require.False(t, p.Artifacts().Building(), "guard released after abort")
}

func TestRun_IdempotentWithoutSourceChange(t *testing.T) {
	ws := newWorkspace(t, true)
	runner := newScriptedRunner().on("pdflatex", fakeLaTeX(true)).on("bibtex", fakeBibtex)
	p := newTestPipeline(ws, runner, DefaultOptions())
	req := NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX))

	first, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	firstPDF, err := os.ReadFile(first.ArtifactPath)
	require.NoError(t, err)

	second, err := p.Run(context.Background(), req.Next())
	require.NoError(t, err)
	secondPDF, err := os.ReadFile(second.ArtifactPath)
	require.NoError(t, err)

	require.Equal(t, first.PassesRun, second.PassesRun)
	require.Equal(t, first.BibliographyRuns, second.BibliographyRuns)
	require.Equal(t, firstPDF, secondPDF)
}

func TestRun_BusyWhileAnotherBuildHoldsOutput(t *testing.T) {
	ws := newWorkspace(t, false)
	p := newTestPipeline(ws, newScriptedRunner().on("pdflatex", fakeLaTeX(false)), DefaultOptions())

	release, err := p.Artifacts().Begin("build")
	require.NoError(t, err)
	defer release()

	_, err = p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX)))
	require.True(t, perrors.IsKind(err, perrors.KindBusy))
}

func TestRun_MissingArtifact(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("latexmk", func(Command) (Output, error) {
		return Output{Combined: []byte("Latexmk: All targets are up-to-date\n")}, nil
	})
	p := newTestPipeline(ws, runner, DefaultOptions())

	res, err := p.Run(context.Background(), NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.Latexmk)))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, LabelNoArtifact, res.Message)
}

func TestRun_ObserversSeeEveryResult(t *testing.T) {
	ws := newWorkspace(t, false)
	var seen []Result
	p := newTestPipeline(ws, newScriptedRunner().on("pdflatex", fakeLaTeX(false)), DefaultOptions()).
		WithObservers(ObserverFunc(func(_ context.Context, _ Request, res Result) { seen = append(seen, res) }))

	req := NewRequest(ws.root, ws.main, ws.out, resolved(t, engine.PDFLaTeX))
	_, err := p.Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, req.ID(), seen[0].RequestID)
}

func TestRun_MissingMainDocument(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("pdflatex", fakeLaTeX(false))
	p := newTestPipeline(ws, runner, DefaultOptions())

	res, err := p.Run(context.Background(), NewRequest(ws.root, filepath.Join(ws.root, "nope.tex"), ws.out, resolved(t, engine.PDFLaTeX)))
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, LabelMainDocumentAbsent, res.Message)
	require.Empty(t, runner.calls)
}

func TestEngineNotFoundSpawnsNoSubprocess(t *testing.T) {
	ws := newWorkspace(t, false)
	runner := newScriptedRunner().on("pdflatex", fakeLaTeX(false))
	resolver := engine.NewResolver(engine.DefaultRegistry(), absentProber{})

	_, err := resolver.Resolve("xelatex", "")
	require.True(t, perrors.IsKind(err, perrors.KindEngineNotFound))
	// resolution failed before any request exists, so the pipeline is never reached
	_ = newTestPipeline(ws, runner, DefaultOptions())
	require.Empty(t, runner.calls)
}

type absentProber struct{}

func (absentProber) LookPath(string) (string, error) { return "", errors.New("not found") }
