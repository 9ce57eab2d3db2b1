// Package config provides the configuration structure for the VoxClone
// client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Built-in defaults, applied for any value the loaded TOML leaves unset.
const (
	DefaultBaseURL        = "http://localhost:8080/api/v1"
	DefaultRequestTimeout = 30
	DefaultPollIntervalMS = 2000
	DefaultPollTimeoutMS  = 300000
	DefaultSignedURLExp   = 3600
	DefaultGenerationCost = 1.00
	defaultStateDirName   = ".voxclone"
)

// APIConfig holds the backend endpoint configuration.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PollingConfig holds the task polling parameters.
type PollingConfig struct {
	IntervalMS int `toml:"interval_ms"`
	TimeoutMS  int `toml:"timeout_ms"`
}

// Interval returns the poll interval as a duration.
func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// Timeout returns the poll horizon as a duration.
func (p PollingConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMS) * time.Millisecond
}

// SessionConfig holds the location of the client-local state directory.
type SessionConfig struct {
	StateDir string `toml:"state_dir"`
}

// StudioConfig holds the submission flow parameters.
type StudioConfig struct {
	SignedURLExpireSeconds int     `toml:"signed_url_expire_seconds"`
	CostPerGeneration      float64 `toml:"cost_per_generation"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	API     APIConfig     `toml:"api"`
	Polling PollingConfig `toml:"polling"`
	Session SessionConfig `toml:"session"`
	Studio  StudioConfig  `toml:"studio"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the client and fills in defaults for
// anything the TOML leaves unset.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults fills every unset value with its built-in default.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}

	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultRequestTimeout
	}

	if c.Polling.IntervalMS <= 0 {
		c.Polling.IntervalMS = DefaultPollIntervalMS
	}

	if c.Polling.TimeoutMS <= 0 {
		c.Polling.TimeoutMS = DefaultPollTimeoutMS
	}

	if c.Session.StateDir == "" {
		c.Session.StateDir = defaultStateDir()
	}

	if c.Studio.SignedURLExpireSeconds <= 0 {
		c.Studio.SignedURLExpireSeconds = DefaultSignedURLExp
	}

	if c.Studio.CostPerGeneration <= 0 {
		c.Studio.CostPerGeneration = DefaultGenerationCost
	}

	if c.Paths.OutputDir == "" {
		c.Paths.OutputDir = "."
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = filepath.Join(defaultStateDir(), "logs")
	}
}

// Default returns a configuration consisting entirely of built-in defaults,
// for use when no TOML source is available.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultStateDirName
	}

	return filepath.Join(home, defaultStateDirName)
}
