package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// knownEngines mirrors the engine registry names. The config package does
// not import the engine package, so the list is duplicated here.
var knownEngines = []string{"tectonic", "latexmk", "pdflatex", "lualatex", "xelatex"}

var knownBibliographyTools = []string{"bibtex", "biber"}

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validatePaths(); err != nil {
		return err
	}
	if err := cv.validateBuild(); err != nil {
		return err
	}
	if err := cv.validateWatch(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	if filepath.Ext(cv.config.MainTex) != ".tex" {
		return fmt.Errorf("main_tex must name a .tex file: %q", cv.config.MainTex)
	}
	if filepath.Clean(cv.config.OutputDir) == "." {
		return errors.New("output_dir must not be the workspace root")
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	if cv.config.Engine != "" && !slices.Contains(knownEngines, cv.config.Engine) {
		return fmt.Errorf("unknown engine %q (expected one of %v)", cv.config.Engine, knownEngines)
	}
	if cv.config.Build.MaxPasses < 1 {
		return fmt.Errorf("build.max_passes must be >= 1, got %d", cv.config.Build.MaxPasses)
	}
	if !slices.Contains(knownBibliographyTools, cv.config.Build.BibliographyTool) {
		return fmt.Errorf("unknown bibliography_tool %q", cv.config.Build.BibliographyTool)
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	d, err := time.ParseDuration(cv.config.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("invalid watch.debounce: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("watch.debounce must be positive, got %s", d)
	}
	for _, pattern := range cv.config.Watch.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid watch.ignore pattern %q", pattern)
		}
	}
	return nil
}
