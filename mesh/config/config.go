// Package config loads the YAML configuration shared by the command line
// tools.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-mesh/mesh"
	"github.com/wbrown/janus-mesh/mesh/columnar"
	"github.com/wbrown/janus-mesh/mesh/storage"
)

// Config is the file layout
type Config struct {
	Shell mesh.ShellPolicy `yaml:"shell"`
	Store columnar.Options `yaml:"store"`
	Diff  DiffConfig       `yaml:"diff"`
	Log   LogConfig        `yaml:"log"`
}

// DiffConfig controls mesh comparison
type DiffConfig struct {
	Tolerance float64 `yaml:"tolerance"` // 0 compares floats exactly
}

// LogConfig controls the tools' logging
type LogConfig struct {
	Level  string `yaml:"level"`  // zap level name
	Events bool   `yaml:"events"` // Print operation events to stderr
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() Config {
	return Config{
		Store: columnar.DefaultOptions(),
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings no tool can honour
func (c Config) Validate() error {
	if c.Diff.Tolerance < 0 {
		return errors.New("diff tolerance must not be negative")
	}
	for _, tag := range c.Shell.DoubleSided {
		if _, err := mesh.Candidates(tag); err != nil {
			return fmt.Errorf("double-sided topology: %w", err)
		}
	}
	return nil
}

// Save writes the configuration as YAML
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StorageOptions returns handle options carrying the configured shell
// policy and store tuning
func (c Config) StorageOptions() storage.Options {
	opts := storage.DefaultOptions()
	opts.ShellPolicy = c.Shell
	opts.Columnar = c.Store
	return opts
}
