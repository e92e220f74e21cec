// Package config loads the per-workspace paperx.yaml file into an immutable
// Config value that is constructed once per invocation and passed explicitly
// to the resolver, build pipeline and watcher.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// DefaultFileName is the configuration file looked up in the workspace root.
const DefaultFileName = "paperx.yaml"

// Config represents a paper workspace configuration.
type Config struct {
	MainTex   string `yaml:"main_tex"`
	Engine    string `yaml:"engine,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`

	// Paper metadata, opaque to the build core.
	Title       string `yaml:"title,omitempty"`
	Author      string `yaml:"author,omitempty"`
	Affiliation string `yaml:"affiliation,omitempty"`
	Keywords    string `yaml:"keywords,omitempty"`
	Abstract    string `yaml:"abstract,omitempty"`

	Build   BuildConfig   `yaml:"build,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`

	// root is the directory the configuration was loaded from; relative
	// paths resolve against it.
	root string
}

// BuildConfig controls the multi-pass compilation protocol.
type BuildConfig struct {
	MaxPasses        int    `yaml:"max_passes,omitempty"`        // Upper bound on engine passes
	BibliographyTool string `yaml:"bibliography_tool,omitempty"` // bibtex or biber
	LogExcerptLines  int    `yaml:"log_excerpt_lines,omitempty"` // Lines kept in a failure excerpt
}

// WatchConfig controls the watch loop.
type WatchConfig struct {
	Debounce  string   `yaml:"debounce,omitempty"`   // Quiet window, e.g. "400ms"
	Paths     []string `yaml:"paths,omitempty"`      // Source directories to watch
	Ignore    []string `yaml:"ignore,omitempty"`     // doublestar globs (relative to workspace)
	QueueSize int      `yaml:"queue_size,omitempty"` // Bounded event queue capacity
}

// HistoryConfig controls the SQLite build history.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// NotifyConfig enables publishing build results to NATS.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// MetricsConfig enables the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// Load reads, normalizes, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, perrors.ConfigInvalid(path, err)
	}
	root := filepath.Dir(absPath)

	// .env next to the config file; missing is fine
	if err := loadEnvFile(root); err != nil {
		return nil, perrors.ConfigInvalid(path, err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, perrors.ConfigNotFound(path)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, perrors.ConfigInvalid(path, fmt.Errorf("failed to read config file: %w", err))
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, perrors.ConfigInvalid(path, err)
	}
	cfg.root = root
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Parse decodes YAML (after ${VAR} expansion), applies defaults and validates.
// The returned config has no root; paths resolve against the working directory.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Save writes cfg as YAML to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Root returns the workspace root (directory of the config file).
func (c *Config) Root() string {
	if c.root == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return c.root
}

// WithRoot returns a copy of c rooted at dir.
func (c *Config) WithRoot(dir string) *Config {
	cp := *c
	cp.root = dir
	return &cp
}

// Resolve makes p absolute relative to the workspace root.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root(), p)
}

// MainDocumentPath returns the absolute main document path.
func (c *Config) MainDocumentPath() string { return c.Resolve(c.MainTex) }

// OutputPath returns the absolute output directory.
func (c *Config) OutputPath() string { return c.Resolve(c.OutputDir) }

// DebounceWindow returns the parsed watch debounce window.
func (c *Config) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return defaultDebounce
	}
	return d
}

// HistoryEnabled reports whether build history should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}
