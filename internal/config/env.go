package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables recognised on top of the YAML file.
const (
	EnvEngine   = "PAPERX_ENGINE"
	EnvLogLevel = "PAPERX_LOG_LEVEL"
)

// loadEnvFile loads .env then .env.local from dir. Existing process
// environment variables are never overwritten.
func loadEnvFile(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// applyEnvOverrides lets the environment override the engine preference and
// log level.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvEngine); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
}
