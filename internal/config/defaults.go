package config

import "time"

const (
	defaultMainTex          = "tex/main.tex"
	defaultOutputDir        = "build"
	defaultMaxPasses        = 5
	defaultBibliographyTool = "bibtex"
	defaultLogExcerptLines  = 40
	defaultDebounce         = 400 * time.Millisecond
	defaultQueueSize        = 64
	defaultHistoryPath      = ".paperx/history.db"
	defaultNotifySubject    = "paperx.builds"
	defaultMetricsPath      = "/metrics"
)

var defaultWatchPaths = []string{"tex", "bib", "figures"}

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// BuildDefaultApplier handles paths and build protocol defaults.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.MainTex == "" {
		cfg.MainTex = defaultMainTex
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.Build.MaxPasses == 0 {
		cfg.Build.MaxPasses = defaultMaxPasses
	}
	if cfg.Build.BibliographyTool == "" {
		cfg.Build.BibliographyTool = defaultBibliographyTool
	}
	if cfg.Build.LogExcerptLines <= 0 {
		cfg.Build.LogExcerptLines = defaultLogExcerptLines
	}
	return nil
}

// WatchDefaultApplier handles watch loop defaults.
type WatchDefaultApplier struct{}

func (w *WatchDefaultApplier) Domain() string { return "watch" }

func (w *WatchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultDebounce.String()
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = append([]string(nil), defaultWatchPaths...)
	}
	if cfg.Watch.QueueSize <= 0 {
		cfg.Watch.QueueSize = defaultQueueSize
	}
	return nil
}

// ObservabilityDefaultApplier handles history, notify, metrics and logging.
type ObservabilityDefaultApplier struct{}

func (o *ObservabilityDefaultApplier) Domain() string { return "observability" }

func (o *ObservabilityDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath
	}
	if cfg.Notify.NATSURL != "" && cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultNotifySubject
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// defaultAppliers returns the domain appliers in application order.
func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&BuildDefaultApplier{},
		&WatchDefaultApplier{},
		&ObservabilityDefaultApplier{},
	}
}

// applyDefaults applies default values to configuration
func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a fully defaulted configuration for a new workspace.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}
