package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Scheduler.PollInterval != 5 {
		t.Fatalf("unexpected default poll interval: %v", cfg.Scheduler.PollInterval)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Fatalf("unexpected default max attempts: %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Analysis.Provider != "flaky" {
		t.Fatalf("unexpected default provider: %q", cfg.Analysis.Provider)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"
api_bind = " 127.0.0.1:9090 "

[scheduler]
poll_interval = 2
workers = 8

[retry]
max_attempts = 3
base_delay = 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if cfg.Paths.APIBind != "127.0.0.1:9090" {
		t.Fatalf("api_bind not trimmed: %q", cfg.Paths.APIBind)
	}
	if cfg.Scheduler.PollInterval != 2 || cfg.Scheduler.Workers != 8 {
		t.Fatalf("scheduler overrides lost: %+v", cfg.Scheduler)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 0.5 {
		t.Fatalf("retry overrides lost: %+v", cfg.Retry)
	}
	// Unset sections keep defaults.
	if cfg.Analysis.FailureRate != 0.25 {
		t.Fatalf("analysis defaults lost: %+v", cfg.Analysis)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Analysis.Provider = "oracle" }},
		{"failure rate above one", func(c *Config) { c.Analysis.FailureRate = 1.5 }},
		{"openrouter without key", func(c *Config) { c.Analysis.Provider = "openrouter"; c.Analysis.APIKey = "" }},
		{"heartbeat timeout too small", func(c *Config) { c.Scheduler.HeartbeatTimeout = c.Scheduler.HeartbeatInterval }},
		{"max delay below base", func(c *Config) { c.Retry.MaxDelay = 0.1 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.normalize(); err != nil {
				t.Fatalf("normalize: %v", err)
			}
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected second WriteSample to fail")
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists || cfg == nil {
		t.Fatal("sample config should load")
	}
}
