package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/paperx/internal/build"
	"git.home.luguber.info/inful/paperx/internal/config"
	"git.home.luguber.info/inful/paperx/internal/metrics"
	"git.home.luguber.info/inful/paperx/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Engine      string        `short:"e" help:"Engine to use; no fallback when set"`
	Outdir      string        `short:"o" help:"Output directory (overrides output_dir)"`
	Debounce    time.Duration `help:"Quiet period before a rebuild (overrides watch.debounce)"`
	MetricsAddr string        `name:"metrics-addr" help:"Serve Prometheus metrics on this address (overrides metrics.addr)"`
	Initial     bool          `negatable:"" default:"true" help:"Build once before waiting for changes"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	session, err := prepareBuild(g, cfg, w.Engine, w.Outdir, "watch")
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := metrics.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)
	session.pipeline.WithRecorder(recorder)

	src, err := watch.NewSource(watch.SourceConfig{
		Root:      cfg.Root(),
		Paths:     watchPaths(cfg),
		OutputDir: session.request.OutputDir(),
		Ignore:    cfg.Watch.Ignore,
		QueueSize: cfg.Watch.QueueSize,
	})
	if err != nil {
		return err
	}
	go src.Run(ctx)

	out := g.stdout()
	report := func(res build.Result, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(out, "Build aborted: %v\n", err)
			return
		}
		printResult(out, res)
	}

	debounce := cfg.DebounceWindow()
	if w.Debounce > 0 {
		debounce = w.Debounce
	}
	_, _ = fmt.Fprintf(out, "Watching %v; press Ctrl+C to stop.\n", cfg.Watch.Paths)

	watcher := watch.New(session.pipeline, session.request, src.Events(), debounce).
		WithRecorder(recorder).
		WithReporter(report)
	if w.Initial {
		watcher.WithInitialBuild()
	}

	addr := cfg.Metrics.Addr
	if w.MetricsAddr != "" {
		addr = w.MetricsAddr
	}
	if addr != "" {
		metrics.RegisterWatchGauges(reg, func() (bool, bool) {
			s := watcher.Session()
			return s.BuildInFlight, s.PendingRebuild
		})
		stop := metrics.Serve(addr, cfg.Metrics.Path, reg)
		defer stop()
	}
	return watcher.Loop(ctx)
}

// watchPaths returns the configured source paths plus the main document
// directory, which must always be watched.
func watchPaths(cfg *config.Config) []string {
	paths := append([]string(nil), cfg.Watch.Paths...)
	mainDir := filepath.Dir(cfg.MainDocumentPath())
	for _, p := range paths {
		if cfg.Resolve(p) == mainDir {
			return paths
		}
	}
	return append(paths, mainDir)
}
