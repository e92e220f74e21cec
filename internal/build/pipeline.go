package build

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/paperx/internal/artifact"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
	"git.home.luguber.info/inful/paperx/internal/metrics"
)

// Options tune the compilation protocol.
type Options struct {
	MaxPasses        int
	BibliographyTool string
	LogExcerptLines  int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{MaxPasses: 5, BibliographyTool: "bibtex", LogExcerptLines: 40}
}

// Observer is told about every Result a pipeline produces.
type Observer interface {
	BuildFinished(ctx context.Context, req Request, res Result)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, req Request, res Result)

func (f ObserverFunc) BuildFinished(ctx context.Context, req Request, res Result) { f(ctx, req, res) }

// Pipeline runs builds for one output directory.
type Pipeline struct {
	artifacts *artifact.Manager
	runner    Runner
	opts      Options
	recorder  metrics.Recorder
	observers []Observer
}

// NewPipeline creates a pipeline. A nil runner executes real subprocesses.
func NewPipeline(artifacts *artifact.Manager, runner Runner, opts Options) *Pipeline {
	if runner == nil {
		runner = ExecRunner{}
	}
	def := DefaultOptions()
	if opts.MaxPasses < 1 {
		opts.MaxPasses = def.MaxPasses
	}
	if opts.BibliographyTool == "" {
		opts.BibliographyTool = def.BibliographyTool
	}
	if opts.LogExcerptLines <= 0 {
		opts.LogExcerptLines = def.LogExcerptLines
	}
	return &Pipeline{artifacts: artifacts, runner: runner, opts: opts, recorder: metrics.NoopRecorder{}}
}

// WithRecorder sets the metrics recorder.
func (p *Pipeline) WithRecorder(r metrics.Recorder) *Pipeline {
	if r != nil {
		p.recorder = r
	}
	return p
}

// WithObservers appends result observers.
func (p *Pipeline) WithObservers(obs ...Observer) *Pipeline {
	for _, o := range obs {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
	return p
}

// Artifacts returns the artifact manager the pipeline records into.
func (p *Pipeline) Artifacts() *artifact.Manager { return p.artifacts }

// Run executes req and returns its Result.
//
// A failed compilation is not an error: it is a Result with Success false.
// The returned error is non-nil only for conditions that abort the build
// without a meaningful Result: the output directory is busy or cannot be
// prepared, or a subprocess could not be launched.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	release, err := p.artifacts.Begin("build")
	if err != nil {
		return Result{}, err
	}
	defer release()

	spec := req.Engine().Spec
	log := slog.With(logfields.BuildID(req.ID()), logfields.Engine(string(spec.Name)))
	start := time.Now()
	log.Info("Build started", logfields.Path(req.MainDocument()), logfields.OutputDir(req.OutputDir()))

	run := &buildRun{p: p, req: req, log: log}
	res, err := run.execute()
	res.RequestID = req.ID()
	res.Engine = string(spec.Name)
	res.Duration = time.Since(start)
	res.FinishedAt = time.Now().UTC()

	if err != nil {
		p.recorder.IncBuildOutcome(res.Engine, metrics.OutcomeFatal)
		log.Error("Build aborted", logfields.Error(err))
		return Result{}, err
	}

	if res.Success {
		if _, err := p.artifacts.RecordSuccess(res.ArtifactPath, req.ID()); err != nil {
			p.recorder.IncBuildOutcome(res.Engine, metrics.OutcomeFatal)
			return Result{}, err
		}
		p.recorder.IncBuildOutcome(res.Engine, metrics.OutcomeSuccess)
		log.Info("Build succeeded", logfields.Passes(res.PassesRun), logfields.Artifact(res.ArtifactPath),
			logfields.DurationMS(float64(res.DurationMS())))
	} else {
		p.recorder.IncBuildOutcome(res.Engine, metrics.OutcomeFailed)
		log.Warn("Build failed", logfields.Passes(res.PassesRun), slog.String("reason", res.Message),
			logfields.DurationMS(float64(res.DurationMS())))
	}
	p.recorder.ObserveBuildDuration(res.Engine, res.Duration)
	p.recorder.ObservePasses(res.Engine, res.PassesRun)

	for _, o := range p.observers {
		o.BuildFinished(ctx, req, res)
	}
	return res, nil
}

// buildRun carries the state of a single execution.
type buildRun struct {
	p   *Pipeline
	req Request
	log *slog.Logger
	res Result
}

func (b *buildRun) execute() (Result, error) {
	req := b.req
	if _, err := os.Stat(req.MainDocument()); err != nil {
		if os.IsNotExist(err) {
			return b.fail(LabelMainDocumentAbsent, req.MainDocument()), nil
		}
		return Result{}, perrors.IOError("stat main document", req.MainDocument(), err)
	}
	if err := os.MkdirAll(req.OutputDir(), 0o755); err != nil {
		return Result{}, perrors.IOError("create output directory", req.OutputDir(), err)
	}
	if err := clearAuxState(req.OutputDir()); err != nil {
		return Result{}, perrors.IOError("clear auxiliary state", req.OutputDir(), err)
	}

	// PDFs left by earlier builds are never this build's artifact
	before, err := snapshotPDFs(req.OutputDir())
	if err != nil {
		return Result{}, perrors.IOError("scan output directory", req.OutputDir(), err)
	}

	spec := req.Engine().Spec
	prev, err := fingerprint(req.OutputDir())
	if err != nil {
		return Result{}, perrors.IOError("fingerprint", req.OutputDir(), err)
	}

	for {
		ok, err := b.enginePass()
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return b.res, nil
		}

		if b.res.PassesRun == 1 && spec.SupportsBibliography {
			ok, err := b.bibliographyPass()
			if err != nil {
				return Result{}, err
			}
			if !ok {
				return b.res, nil
			}
		}

		if !spec.RequiresMultiPass {
			break
		}
		cur, err := fingerprint(req.OutputDir())
		if err != nil {
			return Result{}, perrors.IOError("fingerprint", req.OutputDir(), err)
		}
		if cur == prev {
			b.log.Debug("Reference state converged", logfields.Passes(b.res.PassesRun))
			break
		}
		prev = cur
		if b.res.PassesRun >= b.p.opts.MaxPasses {
			return b.fail(LabelUnstable, b.res.LogExcerpt), nil
		}
	}

	pdf, err := findArtifact(req.OutputDir(), req.jobName(), before)
	if err != nil {
		return Result{}, perrors.IOError("locate artifact", req.OutputDir(), err)
	}
	if pdf == "" {
		return b.fail(LabelNoArtifact, b.res.LogExcerpt), nil
	}
	b.res.Success = true
	b.res.ArtifactPath = pdf
	b.res.LogExcerpt = ""
	return b.res, nil
}

// enginePass runs one engine pass. ok is false when the pass failed and the
// result has been marked accordingly.
func (b *buildRun) enginePass() (ok bool, err error) {
	req := b.req
	resolved := req.Engine()
	cmd := Command{
		Name: resolved.Executable,
		Args: resolved.Spec.CommandArgs(filepath.Base(req.MainDocument()), req.OutputDir()),
		Dir:  req.mainDir(),
	}
	b.res.PassesRun++
	b.log.Debug("Engine pass", logfields.Pass(b.res.PassesRun), logfields.Executable(cmd.Name))

	out, err := b.p.runner.Run(cmd)
	if err != nil {
		return false, perrors.EngineLaunchFailed(cmd.Name, err)
	}
	failed, excerpt := classify(out, resolved.Spec.Markers(), b.p.opts.LogExcerptLines)
	b.res.LogExcerpt = excerpt
	if failed {
		b.fail(LabelCompileFailed, excerpt)
		return false, nil
	}
	return true, nil
}

// bibliographyPass runs the bibliography tool when the first pass
// referenced an existing bibliography source. ok is false on failure.
func (b *buildRun) bibliographyPass() (ok bool, err error) {
	req := b.req
	tool := b.p.opts.BibliographyTool
	sources := bibliographySources(req.OutputDir(), req.mainDir(), req.jobName(), tool)
	if len(sources) == 0 {
		return true, nil
	}

	cmd := Command{Name: tool, Dir: req.OutputDir()}
	switch tool {
	case "biber":
		cmd.Args = []string{"--input-directory", req.mainDir(), req.jobName()}
	default:
		sep := string(os.PathListSeparator)
		cmd.Args = []string{req.jobName()}
		cmd.Env = []string{
			"BIBINPUTS=" + req.mainDir() + sep,
			"BSTINPUTS=" + req.mainDir() + sep,
		}
	}
	b.log.Debug("Bibliography pass", logfields.Executable(tool), slog.Int("sources", len(sources)))
	b.res.BibliographyRuns++
	b.p.recorder.IncBibliographyRun(tool)

	out, err := b.p.runner.Run(cmd)
	if err != nil {
		return false, perrors.EngineLaunchFailed(tool, err)
	}
	failed, excerpt := classify(out, bibliographyMarkers, b.p.opts.LogExcerptLines)
	if failed {
		b.fail(LabelBibliography, excerpt)
		return false, nil
	}
	return true, nil
}

func (b *buildRun) fail(label, excerpt string) Result {
	b.res.Success = false
	b.res.ErrorKind = perrors.KindCompileError
	b.res.Message = label
	b.res.LogExcerpt = excerpt
	b.res.ArtifactPath = ""
	return b.res
}

// pdfStamp identifies one version of a file.
type pdfStamp struct {
	mod  time.Time
	size int64
}

func stampOf(info fs.FileInfo) pdfStamp {
	return pdfStamp{mod: info.ModTime(), size: info.Size()}
}

// snapshotPDFs records the PDFs under dir before any pass runs.
func snapshotPDFs(dir string) (map[string]pdfStamp, error) {
	stamps := map[string]pdfStamp{}
	err := walkPDFs(dir, func(path string, info fs.FileInfo) bool {
		stamps[path] = stampOf(info)
		return true
	})
	return stamps, err
}

// findArtifact returns <outDir>/<job>.pdf, else the first other PDF under
// outDir. Only files created or rewritten since the before snapshot count.
func findArtifact(outDir, job string, before map[string]pdfStamp) (string, error) {
	written := func(path string, info fs.FileInfo) bool {
		old, existed := before[path]
		return !existed || stampOf(info) != old
	}

	primary := filepath.Join(outDir, job+".pdf")
	if info, err := os.Stat(primary); err == nil && !info.IsDir() && written(primary, info) {
		return primary, nil
	}
	var found string
	err := walkPDFs(outDir, func(path string, info fs.FileInfo) bool {
		if path != primary && written(path, info) {
			found = path
			return false
		}
		return true
	})
	return found, err
}

// walkPDFs calls fn for every PDF under dir until fn returns false.
func walkPDFs(dir string, fn func(path string, info fs.FileInfo) bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !fn(path, info) {
			return fs.SkipAll
		}
		return nil
	})
}
