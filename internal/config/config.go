// Package config provides configuration management for the mail server.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Hostname is the internal mail domain: addresses local@hostname are
	// internal destinations, everything else is external.
	Hostname string `toml:"hostname"`

	// Listen is the address of the client-facing stream listener.
	Listen string `toml:"listen"`

	// DataDir is the root of the mailbox store.
	DataDir string `toml:"data_dir"`

	LogLevel string         `toml:"log_level"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Limits   LimitsConfig   `toml:"limits"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// TimeoutsConfig defines timeout durations.
type TimeoutsConfig struct {
	Idle    string `toml:"idle"`
	Command string `toml:"command"`
}

// LimitsConfig defines resource limits for the server.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
	MaxFrameBytes  int `toml:"max_frame_bytes"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		Listen:   ":1337",
		DataDir:  "./data",
		LogLevel: "info",
		Timeouts: TimeoutsConfig{
			Idle:    "30m",
			Command: "1m",
		},
		Limits: LimitsConfig{
			MaxConnections: 100,
			MaxFrameBytes:  1 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if c.Listen == "" {
		return errors.New("listen address is required")
	}

	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	if c.Limits.MaxFrameBytes <= 0 {
		return errors.New("max_frame_bytes must be positive")
	}

	if c.Timeouts.Idle != "" {
		if _, err := time.ParseDuration(c.Timeouts.Idle); err != nil {
			return fmt.Errorf("invalid idle timeout: %w", err)
		}
	}

	if c.Timeouts.Command != "" {
		if _, err := time.ParseDuration(c.Timeouts.Command); err != nil {
			return fmt.Errorf("invalid command timeout: %w", err)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// IdleTimeout returns the idle timeout as a time.Duration.
// Returns 30 minutes if not configured or invalid.
func (c *TimeoutsConfig) IdleTimeout() time.Duration {
	if c.Idle == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.Idle)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// CommandTimeout returns the command timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *TimeoutsConfig) CommandTimeout() time.Duration {
	if c.Command == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(c.Command)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}
