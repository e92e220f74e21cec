package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/paperx/internal/artifact"
	"git.home.luguber.info/inful/paperx/internal/build"
	"git.home.luguber.info/inful/paperx/internal/config"
	"git.home.luguber.info/inful/paperx/internal/engine"
	"git.home.luguber.info/inful/paperx/internal/history"
	"git.home.luguber.info/inful/paperx/internal/logfields"
	"git.home.luguber.info/inful/paperx/internal/notify"
	"git.home.luguber.info/inful/paperx/internal/opener"
)

// Global holds the process collaborators shared by every command. Tests
// replace them with fakes.
type Global struct {
	Stdout io.Writer
	Opener opener.Opener
	Prober engine.Prober
	Runner build.Runner
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

func (g *Global) opener() opener.Opener {
	if g == nil || g.Opener == nil {
		return opener.System{}
	}
	return g.Opener
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"paperx.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	New     NewCmd     `cmd:"" help:"Create a new paper workspace"`
	Build   BuildCmd   `cmd:"" help:"Build the paper to PDF"`
	Watch   WatchCmd   `cmd:"" help:"Watch sources and rebuild on change"`
	Add     AddCmd     `cmd:"" help:"Add a section or figure to the paper"`
	Open    OpenCmd    `cmd:"" help:"Open the last successfully built PDF"`
	Clean   CleanCmd   `cmd:"" help:"Remove the build output directory"`
	History HistoryCmd `cmd:"" help:"List recent builds"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads the workspace configuration and re-applies logging
// settings from it. -v always wins over the configured level.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.SlogLevel()
	if root.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

// buildSession bundles a resolved request with the pipeline that runs it.
type buildSession struct {
	cfg      *config.Config
	request  build.Request
	pipeline *build.Pipeline
	closers  []func()
}

func (s *buildSession) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// prepareBuild resolves the engine once and wires the pipeline with its
// observers. Engine errors are returned before any subprocess is spawned.
func prepareBuild(g *Global, cfg *config.Config, engineFlag, outDir, trigger string) (*buildSession, error) {
	var prober engine.Prober
	var runner build.Runner
	if g != nil {
		prober, runner = g.Prober, g.Runner
	}

	resolver := engine.NewResolver(engine.DefaultRegistry(), prober)
	resolved, err := resolver.Resolve(engineFlag, cfg.Engine)
	if err != nil {
		return nil, err
	}
	slog.Info("Using engine", logfields.Engine(string(resolved.Spec.Name)), logfields.Executable(resolved.Executable))

	req := build.RequestFor(cfg, resolved, outDir)
	pipeline := build.NewPipeline(artifact.NewManager(req.OutputDir()), runner, build.Options{
		MaxPasses:        cfg.Build.MaxPasses,
		BibliographyTool: cfg.Build.BibliographyTool,
		LogExcerptLines:  cfg.Build.LogExcerptLines,
	})
	s := &buildSession{cfg: cfg, request: req, pipeline: pipeline}

	if cfg.HistoryEnabled() {
		path := cfg.Resolve(cfg.History.Path)
		if store, err := history.NewSQLiteStore(path); err != nil {
			slog.Warn("Build history disabled", logfields.Path(path), logfields.Error(err))
		} else {
			pipeline.WithObservers(history.Observer{Store: store, Trigger: trigger})
			s.closers = append(s.closers, func() { _ = store.Close() })
		}
	}
	if cfg.Notify.NATSURL != "" {
		if pub, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject); err != nil {
			slog.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			pipeline.WithObservers(pub)
			s.closers = append(s.closers, pub.Close)
		}
	}
	return s, nil
}

// outputManager returns the artifact manager for cfg or the --outdir override.
func outputManager(cfg *config.Config, outDir string) *artifact.Manager {
	if outDir != "" {
		return artifact.NewManager(cfg.Resolve(outDir))
	}
	return artifact.NewManager(cfg.OutputPath())
}

// printResult writes a one-line summary, plus the log excerpt on failure.
func printResult(w io.Writer, res build.Result) {
	if res.Success {
		_, _ = fmt.Fprintf(w, "Built %s (%s, %d passes, %dms)\n", res.ArtifactPath, res.Engine, res.PassesRun, res.DurationMS())
		return
	}
	_, _ = fmt.Fprintf(w, "Build failed: %s (%s, %d passes)\n", res.Message, res.Engine, res.PassesRun)
	if res.LogExcerpt != "" {
		_, _ = fmt.Fprintln(w, res.LogExcerpt)
	}
}
