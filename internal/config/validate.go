package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir is required")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir is required")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.HeartbeatTimeout <= c.Scheduler.HeartbeatInterval {
		return fmt.Errorf(
			"scheduler.heartbeat_timeout (%.0fs) must exceed scheduler.heartbeat_interval (%.0fs)",
			c.Scheduler.HeartbeatTimeout, c.Scheduler.HeartbeatInterval,
		)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf(
			"retry.max_delay (%.1fs) must be at least retry.base_delay (%.1fs)",
			c.Retry.MaxDelay, c.Retry.BaseDelay,
		)
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	switch c.Analysis.Provider {
	case ProviderFlaky:
		if c.Analysis.FailureRate > 1 {
			return fmt.Errorf("analysis.failure_rate must be within [0, 1], got %.2f", c.Analysis.FailureRate)
		}
	case ProviderOpenRouter:
		if c.Analysis.APIKey == "" {
			return errors.New("analysis.api_key is required when analysis.provider is \"openrouter\"")
		}
	default:
		return fmt.Errorf("analysis.provider: unsupported value %q", c.Analysis.Provider)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
