package engine

import (
	"errors"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// fakeProber reports a fixed set of executables as present and records
// every probe.
type fakeProber struct {
	mu      sync.Mutex
	present map[string]bool
	probed  []string
}

func newFakeProber(present ...string) *fakeProber {
	p := &fakeProber{present: map[string]bool{}}
	for _, e := range present {
		p.present[e] = true
	}
	return p
}

func (p *fakeProber) LookPath(file string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, file)
	if p.present[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func TestResolve_ExplicitPresent(t *testing.T) {
	r := NewResolver(DefaultRegistry(), newFakeProber("pdflatex", "tectonic"))

	got, err := r.Resolve("pdflatex", "")
	require.NoError(t, err)
	require.Equal(t, PDFLaTeX, got.Spec.Name)
	require.Equal(t, "/usr/bin/pdflatex", got.Executable)
}

func TestResolve_ExplicitAbsentNeverFallsBack(t *testing.T) {
	for _, name := range []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex", "context"} {
		t.Run(name, func(t *testing.T) {
			// every other engine is installed
			all := []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex"}
			var present []string
			for _, e := range all {
				if e != name {
					present = append(present, e)
				}
			}
			prober := newFakeProber(present...)
			r := NewResolver(DefaultRegistry(), prober)

			_, err := r.Resolve(name, "tectonic")
			require.Error(t, err)
			require.True(t, perrors.IsKind(err, perrors.KindEngineNotFound))

			spec, known := DefaultRegistry().Lookup(name)
			if !known {
				require.Empty(t, prober.probed)
				return
			}
			require.ElementsMatch(t, spec.Executables, prober.probed)
		})
	}
}

func TestResolve_DefaultOrderFirstPresentWins(t *testing.T) {
	tests := []struct {
		name      string
		present   []string
		preferred string
		want      Name
	}{
		{"all present", []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex"}, "", Tectonic},
		{"tectonic missing", []string{"latexmk", "pdflatex"}, "", Latexmk},
		{"only last", []string{"xelatex"}, "", XeLaTeX},
		{"preference honoured", []string{"tectonic", "lualatex"}, "lualatex", LuaLaTeX},
		{"preference absent falls back", []string{"pdflatex", "xelatex"}, "lualatex", PDFLaTeX},
		{"unknown preference ignored", []string{"latexmk"}, "groff", Latexmk},
		{"alternate executable", []string{"latexmk.pl"}, "", Latexmk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(DefaultRegistry(), newFakeProber(tt.present...))
			got, err := r.Resolve("", tt.preferred)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Spec.Name)
		})
	}
}

func TestResolve_DeterministicUnderShuffledPresence(t *testing.T) {
	all := []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex"}
	rng := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		subset := make([]string, 0, len(all))
		for _, e := range all {
			if rng.IntN(2) == 1 {
				subset = append(subset, e)
			}
		}
		if len(subset) == 0 {
			continue
		}
		rng.Shuffle(len(subset), func(i, j int) { subset[i], subset[j] = subset[j], subset[i] })

		var want string
		for _, e := range all {
			if slices.Contains(subset, e) {
				want = e
				break
			}
		}

		r := NewResolver(DefaultRegistry(), newFakeProber(subset...))
		first, err := r.Resolve("", "")
		require.NoError(t, err)
		second, err := r.Resolve("", "")
		require.NoError(t, err)
		require.Equal(t, want, string(first.Spec.Name))
		require.Equal(t, first, second)
	}
}

func TestResolve_NoEngineAvailable(t *testing.T) {
	prober := newFakeProber()
	r := NewResolver(DefaultRegistry(), prober)

	_, err := r.Resolve("", "")
	require.Error(t, err)
	require.True(t, perrors.IsKind(err, perrors.KindNoEngineAvailable))
	require.Equal(t, []string{"tectonic", "latexmk", "latexmk.pl", "pdflatex", "lualatex", "xelatex"}, prober.probed)
}

func TestOrder(t *testing.T) {
	r := NewResolver(DefaultRegistry(), nil)

	require.Equal(t, []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex"}, r.Order(""))
	require.Equal(t, []string{"pdflatex", "tectonic", "latexmk", "lualatex", "xelatex"}, r.Order("PDFLaTeX"))
	require.Equal(t, r.Order("xelatex"), r.Order("xelatex"))
}

func TestSpecCommandArgs(t *testing.T) {
	spec, ok := DefaultRegistry().Lookup("pdflatex")
	require.True(t, ok)

	args := spec.CommandArgs("main.tex", "/work/build")
	require.Equal(t, []string{"-interaction=nonstopmode", "-file-line-error", "-output-directory=/work/build", "main.tex"}, args)
	// template untouched
	require.Contains(t, spec.Args, PlaceholderMain)
}
