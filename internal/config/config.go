// Package config provides configuration for the twin daemon.
//
// Config file locations (priority order):
//  1. $TWIND_CONFIG
//  2. ./twind.yaml
//  3. ~/.config/twind/config.yaml
//
// A missing file is not an error; defaults apply. Command-line flags
// override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// ProducerURL is the base URL of the topology producer,
	// e.g. "http://localhost:8080".
	ProducerURL string `yaml:"producer_url"`

	// SnapshotFile, when set, replaces the HTTP producer with a local
	// snapshot file (offline replay). Changes to the file trigger an
	// immediate sync cycle.
	SnapshotFile string `yaml:"snapshot_file,omitempty"`

	// SyncInterval between background iterations, e.g. "10s".
	SyncInterval string `yaml:"sync_interval"`

	// Startup controls the blocking initial fetch.
	Startup StartupConfig `yaml:"startup"`

	// JournalPath is the SQLite reconciliation journal. Empty disables
	// journalling.
	JournalPath string `yaml:"journal_path,omitempty"`

	// StatusAddr is the status/metrics HTTP listen address. Empty
	// disables the status server.
	StatusAddr string `yaml:"status_addr,omitempty"`
}

// StartupConfig bounds the initial snapshot fetch.
type StartupConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	RetryDelay string `yaml:"retry_delay"`
}

// Load finds and loads the config file, or returns defaults if none is
// found. The returned path is "" when defaults were used.
func Load() (*Config, string, error) {
	path := findConfigPath()
	if path == "" {
		return Default(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific file.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ProducerURL == "" {
		c.ProducerURL = "http://localhost:8080"
	}
	if c.SyncInterval == "" {
		c.SyncInterval = "10s"
	}
	if c.Startup.MaxRetries == 0 {
		c.Startup.MaxRetries = 4
	}
	if c.Startup.RetryDelay == "" {
		c.Startup.RetryDelay = "7s"
	}
	if c.StatusAddr == "" {
		c.StatusAddr = ":3000"
	}
}

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.SyncInterval); err != nil {
		return fmt.Errorf("sync_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Startup.RetryDelay); err != nil {
		return fmt.Errorf("startup.retry_delay: %w", err)
	}
	if c.Startup.MaxRetries < 1 {
		return fmt.Errorf("startup.max_retries must be at least 1, got %d", c.Startup.MaxRetries)
	}
	return nil
}

// SyncIntervalDuration returns the parsed sync interval.
func (c *Config) SyncIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// RetryDelayDuration returns the parsed startup retry delay.
func (c *Config) RetryDelayDuration() time.Duration {
	d, err := time.ParseDuration(c.Startup.RetryDelay)
	if err != nil {
		return 7 * time.Second
	}
	return d
}

func findConfigPath() string {
	if path := os.Getenv("TWIND_CONFIG"); path != "" {
		return path
	}
	candidates := []string{"./twind.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "twind", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
