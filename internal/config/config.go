// Package config loads the YAML settings shared by the CLI and the job server.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreFS     = "fs"
	StoreBadger = "badger"
)

// Config is the top-level configuration file.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	DataDir  string       `yaml:"data_dir"`
	Store    string       `yaml:"store"`
	Server   ServerConfig `yaml:"server"`
	Defaults Defaults     `yaml:"defaults"`
}

// ServerConfig configures the HTTP job server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults are the kernel parameters used when a run leaves them unset.
type Defaults struct {
	NSweeps          int     `yaml:"nsweeps"`
	MaxEvaluations   int     `yaml:"max_evaluations"`
	LocalSearchDepth int     `yaml:"local_search_depth"`
	Gamma            float64 `yaml:"gamma"`
	SMax             int     `yaml:"smax"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		DataDir:  "./data",
		Store:    StoreFS,
		Server:   ServerConfig{Addr: "localhost:8080"},
		Defaults: Defaults{
			NSweeps:          50,
			MaxEvaluations:   10000,
			LocalSearchDepth: 50,
			Gamma:            2.220446049250313e-16,
			SMax:             20,
		},
	}
}

// Load reads and validates a config file. Keys missing from the file keep
// their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}

	switch c.Store {
	case StoreFS, StoreBadger:
	default:
		return fmt.Errorf("invalid store: %s (must be %s or %s)", c.Store, StoreFS, StoreBadger)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if err := c.Defaults.Validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	return nil
}

// Validate checks the kernel defaults against the ranges the kernel accepts.
func (d Defaults) Validate() error {
	if d.NSweeps < 1 {
		return fmt.Errorf("nsweeps must be positive, got %d", d.NSweeps)
	}
	if d.MaxEvaluations < 1 {
		return fmt.Errorf("max_evaluations must be positive, got %d", d.MaxEvaluations)
	}
	if d.LocalSearchDepth < 0 {
		return fmt.Errorf("local_search_depth cannot be negative, got %d", d.LocalSearchDepth)
	}
	if d.Gamma < 0 || math.IsNaN(d.Gamma) {
		return fmt.Errorf("gamma must be a non-negative number, got %g", d.Gamma)
	}
	if d.SMax < 2 {
		return fmt.Errorf("smax must be at least 2, got %d", d.SMax)
	}
	return nil
}
