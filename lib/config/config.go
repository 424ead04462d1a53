// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the messenger
// runtime.
//
// Configuration is loaded from a single YAML file specified by:
//   - the FLUUX_CONFIG environment variable, or
//   - the --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This keeps the
// effective configuration deterministic and auditable: no hidden
// per-user files override what the operator wrote.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that points at the config
// file when no --config flag is given.
const EnvVar = "FLUUX_CONFIG"

// Config is the root configuration for a messenger session.
type Config struct {
	// Server configures the account the session connects as.
	Server ServerConfig `yaml:"server"`

	// Presence configures the idle monitor driving auto-away.
	Presence PresenceConfig `yaml:"presence"`

	// Batch configures bounded fan-out operations.
	Batch BatchConfig `yaml:"batch"`

	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level"`
}

// ServerConfig identifies the account and its server.
type ServerConfig struct {
	// Domain is the account domain (the part after @ in the JID).
	Domain string `yaml:"domain"`

	// Address is the server endpoint, host:port. Empty means derive
	// from Domain; resolution is the protocol client's concern.
	Address string `yaml:"address,omitempty"`
}

// PresenceConfig tunes automatic away detection.
type PresenceConfig struct {
	// IdleThreshold is how long without user activity before the
	// session is marked auto-away. Default: 5m.
	IdleThreshold time.Duration `yaml:"idle_threshold"`

	// PollInterval is how often idle time is checked against the
	// threshold. Default: 15s.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// BatchConfig tunes bounded fan-out.
type BatchConfig struct {
	// Limit caps concurrently in-flight operations per batch.
	// Default: 3.
	Limit int `yaml:"limit"`
}

// Default returns the configuration used when a field (or the whole
// file) is absent.
func Default() Config {
	return Config{
		Presence: PresenceConfig{
			IdleThreshold: 5 * time.Minute,
			PollInterval:  15 * time.Second,
		},
		Batch:    BatchConfig{Limit: 3},
		LogLevel: "info",
	}
}

// Load reads and validates the config file at path. If path is empty,
// the FLUUX_CONFIG environment variable is consulted; if that is also
// empty, Load returns an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Config{}, fmt.Errorf("config: no path given and %s is not set", EnvVar)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML config bytes. Absent fields
// take their defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges. It does not check reachability of the
// server; that is the protocol client's concern at connect time.
func (c Config) Validate() error {
	if c.Server.Domain == "" {
		return fmt.Errorf("config: server.domain is required")
	}
	if c.Presence.IdleThreshold <= 0 {
		return fmt.Errorf("config: presence.idle_threshold must be positive, got %v", c.Presence.IdleThreshold)
	}
	if c.Presence.PollInterval <= 0 {
		return fmt.Errorf("config: presence.poll_interval must be positive, got %v", c.Presence.PollInterval)
	}
	if c.Presence.PollInterval > c.Presence.IdleThreshold {
		return fmt.Errorf("config: presence.poll_interval %v exceeds idle_threshold %v",
			c.Presence.PollInterval, c.Presence.IdleThreshold)
	}
	if c.Batch.Limit <= 0 {
		return fmt.Errorf("config: batch.limit must be positive, got %d", c.Batch.Limit)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	return nil
}
