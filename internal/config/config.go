// Package config loads the CLI's optional YAML configuration file.
//
// Flags always win over the file; the file exists so operators don't have
// to repeat --db on every invocation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings the CLI reads from a YAML file.
type Config struct {
	// Database is the path to the SQLite database file.
	Database string `yaml:"database"`

	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose"`

	// Format selects CLI output rendering: "text" or "json".
	Format string `yaml:"format"`

	// DefaultScope is applied when a command omits --scope.
	DefaultScope int64 `yaml:"default_scope"`
}

// Load reads and parses a YAML config file.
// A missing path is an error; callers skip Load when no file was given.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Format != "" && cfg.Format != "text" && cfg.Format != "json" {
		return Config{}, fmt.Errorf("config %s: invalid format %q: must be text or json", path, cfg.Format)
	}

	return cfg, nil
}
