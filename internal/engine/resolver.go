package engine

import (
	"log/slog"
	"os/exec"
	"slices"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// Prober reports whether an executable is available. Probing must be
// read-only.
type Prober interface {
	LookPath(file string) (string, error)
}

// PathProber probes the process PATH.
type PathProber struct{}

func (PathProber) LookPath(file string) (string, error) { return exec.LookPath(file) }

// Resolved is the outcome of a successful resolution.
type Resolved struct {
	Spec Spec
	// Executable is the absolute path of the first available candidate.
	Executable string
}

// Resolver picks the engine for a build.
type Resolver struct {
	registry *Registry
	prober   Prober
}

// NewResolver returns a resolver over registry. A nil prober probes PATH.
func NewResolver(registry *Registry, prober Prober) *Resolver {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if prober == nil {
		prober = PathProber{}
	}
	return &Resolver{registry: registry, prober: prober}
}

// Order returns the default probe order with preferred (if registered)
// moved to the front. It depends only on its input and the registry.
func (r *Resolver) Order(preferred string) []string {
	names := r.registry.Names()
	spec, ok := r.registry.Lookup(preferred)
	if !ok {
		return names
	}
	idx := slices.Index(names, string(spec.Name))
	first := names[idx]
	rest := slices.Delete(names, idx, idx+1)
	return append([]string{first}, rest...)
}

// Resolve returns the engine to use.
//
// When explicit is non-empty only that engine is probed and its absence is
// an EngineNotFound error. Otherwise the default order (with preferred
// first) is probed and the first available engine wins; NoEngineAvailable is
// returned only when every candidate is absent.
func (r *Resolver) Resolve(explicit, preferred string) (Resolved, error) {
	if explicit != "" {
		spec, ok := r.registry.Lookup(explicit)
		if !ok {
			return Resolved{}, perrors.EngineNotFound(explicit, nil)
		}
		if path, found := r.probe(spec); found {
			return Resolved{Spec: spec, Executable: path}, nil
		}
		return Resolved{}, perrors.EngineNotFound(explicit, spec.Executables)
	}

	order := r.Order(preferred)
	for _, name := range order {
		spec, _ := r.registry.Lookup(name)
		if path, found := r.probe(spec); found {
			return Resolved{Spec: spec, Executable: path}, nil
		}
		slog.Debug("Engine not available", logfields.Engine(name))
	}
	return Resolved{}, perrors.NoEngineAvailable(order)
}

func (r *Resolver) probe(spec Spec) (string, bool) {
	for _, exe := range spec.Executables {
		if path, err := r.prober.LookPath(exe); err == nil {
			return path, true
		}
	}
	return "", false
}
