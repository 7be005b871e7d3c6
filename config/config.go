// Package config loads and saves the threatmon settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"threatmon/cmd/analyzer"
	"threatmon/logentry"
)

// DefaultHistoryKeep matches how many responses the browser monitor retained.
const DefaultHistoryKeep = 20

type Config struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	History  HistoryConfig `yaml:"history"`
	Filter   FilterConfig  `yaml:"filter"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Keep    int    `yaml:"keep"`
}

type FilterConfig struct {
	Methods []string `yaml:"methods"`
	Exclude []string `yaml:"exclude"`
}

// Default returns the built-in settings. Timeout zero means no client timeout.
func Default() Config {
	return Config{
		Endpoint: analyzer.DefaultEndpoint,
		History: HistoryConfig{
			Keep: DefaultHistoryKeep,
		},
		Filter: FilterConfig{
			Methods: append([]string(nil), logentry.DefaultMethods...),
			Exclude: append([]string(nil), logentry.DefaultExcludedDomains...),
		},
	}
}

// Dir is the directory holding the config file and, by default, the history database.
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting user config directory: %w", err)
	}
	return filepath.Join(configDir, "threatmon"), nil
}

// DefaultPath is where the config file lives unless --config says otherwise.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = analyzer.DefaultEndpoint
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = DefaultHistoryKeep
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory when needed.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// HistoryPath resolves the database location, falling back to the config directory.
func (c Config) HistoryPath() (string, error) {
	if c.History.Path != "" {
		return c.History.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// LogFilter builds the request filter for the configured endpoint.
func (c Config) LogFilter() logentry.Filter {
	return logentry.Filter{
		Endpoint:        c.Endpoint,
		Methods:         c.Filter.Methods,
		ExcludedDomains: c.Filter.Exclude,
	}
}
