// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  domain: fluux.io\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Presence.IdleThreshold != 5*time.Minute {
		t.Errorf("idle threshold = %v, want 5m", cfg.Presence.IdleThreshold)
	}
	if cfg.Presence.PollInterval != 15*time.Second {
		t.Errorf("poll interval = %v, want 15s", cfg.Presence.PollInterval)
	}
	if cfg.Batch.Limit != 3 {
		t.Errorf("batch limit = %d, want 3", cfg.Batch.Limit)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  domain: fluux.io
  address: xmpp.fluux.io:5222
presence:
  idle_threshold: 10m
  poll_interval: 30s
batch:
  limit: 8
log_level: debug
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Server.Address != "xmpp.fluux.io:5222" {
		t.Errorf("address = %q", cfg.Server.Address)
	}
	if cfg.Presence.IdleThreshold != 10*time.Minute {
		t.Errorf("idle threshold = %v, want 10m", cfg.Presence.IdleThreshold)
	}
	if cfg.Batch.Limit != 8 {
		t.Errorf("batch limit = %d, want 8", cfg.Batch.Limit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing domain", func(c *Config) { c.Server.Domain = "" }, "server.domain"},
		{"zero threshold", func(c *Config) { c.Presence.IdleThreshold = 0 }, "idle_threshold"},
		{"zero poll", func(c *Config) { c.Presence.PollInterval = 0 }, "poll_interval"},
		{"poll exceeds threshold", func(c *Config) {
			c.Presence.PollInterval = time.Hour
		}, "exceeds idle_threshold"},
		{"zero batch limit", func(c *Config) { c.Batch.Limit = 0 }, "batch.limit"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.Domain = "fluux.io"
			test.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("error %q does not mention %q", err, test.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluux.yaml")
	if err := os.WriteFile(path, []byte("server:\n  domain: fluux.io\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Domain != "fluux.io" {
		t.Errorf("domain = %q", cfg.Server.Domain)
	}

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(EnvVar, path)
		if _, err := Load(""); err != nil {
			t.Errorf("Load with %s set failed: %v", EnvVar, err)
		}
	})

	t.Run("no path anywhere", func(t *testing.T) {
		t.Setenv(EnvVar, "")
		if _, err := Load(""); err == nil {
			t.Error("Load with no path should fail")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("Load of missing file should fail")
		}
	})
}
