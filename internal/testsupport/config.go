package testsupport

import (
	"path/filepath"
	"testing"

	"callwave/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Scheduler.PollInterval = 0.05
	cfg.Scheduler.ErrorRetryInterval = 0.05
	cfg.Retry.BaseDelay = 0.001
	cfg.Retry.MaxDelay = 0.01
	cfg.Analysis.MinLatency = 0
	cfg.Analysis.MaxLatency = 0.001
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithFailureRate sets the flaky analysis provider's failure rate.
func WithFailureRate(rate float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analysis.FailureRate = rate
	}
}

// WithWorkers overrides the scheduler worker count.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scheduler.Workers = workers
	}
}
