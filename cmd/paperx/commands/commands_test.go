package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/paperx/internal/build"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/history"
	"git.home.luguber.info/inful/paperx/internal/scaffold"
)

type stubProber map[string]bool

func (p stubProber) LookPath(file string) (string, error) {
	if p[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

// fakeEngine writes an aux file and a pdf into -output-directory.
type fakeEngine struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEngine) Run(c build.Command) (build.Output, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	var out string
	for _, a := range c.Args {
		if v, ok := strings.CutPrefix(a, "-output-directory="); ok {
			out = v
		}
	}
	if err := os.WriteFile(filepath.Join(out, "main.aux"), []byte("\\relax\n"), 0o644); err != nil {
		return build.Output{}, err
	}
	if err := os.WriteFile(filepath.Join(out, "main.pdf"), []byte("%PDF-1.5"), 0o644); err != nil {
		return build.Output{}, err
	}
	return build.Output{Combined: []byte("Output written on main.pdf (1 page).\n")}, nil
}

func (f *fakeEngine) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingOpener struct{ opened []string }

func (o *recordingOpener) Open(path string) error {
	o.opened = append(o.opened, path)
	return nil
}

type harness struct {
	dir    string
	out    *bytes.Buffer
	runner *fakeEngine
	opener *recordingOpener
	global *Global
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "paper")
	require.NoError(t, scaffold.New(scaffold.NewOptions{Dir: dir, Title: "T", Author: "A"}))
	h := &harness{dir: dir, out: &bytes.Buffer{}, runner: &fakeEngine{}, opener: &recordingOpener{}}
	h.global = &Global{
		Stdout: h.out,
		Opener: h.opener,
		Prober: stubProber{"pdflatex": true},
		Runner: h.runner,
	}
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Name("paperx"), kong.Vars{"version": "test"})
	require.NoError(t, err)
	full := append([]string{"-c", filepath.Join(h.dir, "paperx.yaml")}, args...)
	kctx, err := parser.Parse(full)
	require.NoError(t, err)
	return kctx.Run(h.global, cli)
}

func TestParse_Commands(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Name("paperx"), kong.Vars{"version": "test"})
	require.NoError(t, err)

	_, err = parser.Parse([]string{"build", "-e", "lualatex", "-o", "out", "--open"})
	require.NoError(t, err)
	require.Equal(t, "lualatex", cli.Build.Engine)
	require.Equal(t, "out", cli.Build.Outdir)
	require.True(t, cli.Build.Open)

	_, err = parser.Parse([]string{"watch", "--debounce", "250ms", "--no-initial"})
	require.NoError(t, err)
	require.Equal(t, "250ms", cli.Watch.Debounce.String())
	require.False(t, cli.Watch.Initial)

	_, err = parser.Parse([]string{"new", "paper", "--template", "ltjs-ja", "--no-git"})
	require.NoError(t, err)
	require.Equal(t, "ltjs-ja", cli.New.Template)
	require.False(t, cli.New.Git)

	_, err = parser.Parse([]string{"new", "paper", "--template", "memoir"})
	require.Error(t, err)
}

func TestBuild_RecordsArtifactAndHistory(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "build", "--engine", "pdflatex", "--open"))
	require.Contains(t, h.out.String(), "Built ")
	require.GreaterOrEqual(t, h.runner.count(), 2)

	pdf := filepath.Join(h.dir, "build", "main.pdf")
	require.Equal(t, []string{pdf}, h.opener.opened)

	store, err := history.NewSQLiteStore(filepath.Join(h.dir, ".paperx", "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	entries, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Success)
	require.Equal(t, "build", entries[0].Trigger)
	require.Equal(t, "pdflatex", entries[0].Engine)

	h.out.Reset()
	require.NoError(t, h.run(t, "history"))
	require.Contains(t, h.out.String(), "pdflatex")
}

func TestBuild_ExplicitEngineAbsent(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "build", "--engine", "xelatex")
	require.Error(t, err)
	require.True(t, perrors.IsKind(err, perrors.KindEngineNotFound))
	require.Zero(t, h.runner.count())
	require.NoDirExists(t, filepath.Join(h.dir, "build"))
}

func TestOpen_NoArtifactYet(t *testing.T) {
	h := newHarness(t)

	err := h.run(t, "open")
	require.ErrorContains(t, err, "no artifact yet")
	require.Empty(t, h.opener.opened)
}

func TestOpen_AfterBuild(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "build", "-e", "pdflatex"))
	require.Empty(t, h.opener.opened)

	require.NoError(t, h.run(t, "open"))
	require.Equal(t, []string{filepath.Join(h.dir, "build", "main.pdf")}, h.opener.opened)
}

func TestClean_RemovesOutput(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, "build", "-e", "pdflatex"))
	require.DirExists(t, filepath.Join(h.dir, "build"))

	require.NoError(t, h.run(t, "clean"))
	require.NoDirExists(t, filepath.Join(h.dir, "build"))
	require.Contains(t, h.out.String(), "Cleaned ")

	// second clean is a no-op
	require.NoError(t, h.run(t, "clean"))
	require.ErrorContains(t, h.run(t, "open"), "no artifact yet")
}

func TestAddSectionAndFigure(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "add", "section", "related-work"))
	main, err := os.ReadFile(filepath.Join(h.dir, "tex", "main.tex"))
	require.NoError(t, err)
	require.Contains(t, string(main), `\input{sections/related-work}`)

	img := filepath.Join(t.TempDir(), "plot.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o644))
	require.NoError(t, h.run(t, "add", "figure", img, "--caption", "A plot"))
	require.FileExists(t, filepath.Join(h.dir, "figures", "plot.png"))
	require.Contains(t, h.out.String(), `\label{fig:plot}`)
}
