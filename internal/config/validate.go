package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateMigration(); err != nil {
		return err
	}
	if err := c.validateClassification(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set (or export RESHELVE_LIBRARY_DIR)")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateMigration() error {
	if err := ensurePositiveMap(map[string]int{
		"migration.timeout_seconds":           c.Migration.TimeoutSeconds,
		"migration.lock_poll_interval_ms":     c.Migration.LockPollIntervalMillis,
		"migration.lock_poll_timeout_ms":      c.Migration.LockPollTimeoutMillis,
		"migration.consecutive_failure_limit": c.Migration.ConsecutiveFailureLimit,
		"migration.workers":                   c.Migration.Workers,
	}); err != nil {
		return err
	}
	if c.Migration.LockPollTimeoutMillis < c.Migration.LockPollIntervalMillis {
		return errors.New("migration.lock_poll_timeout_ms must be at least migration.lock_poll_interval_ms")
	}
	return nil
}

func (c *Config) validateClassification() error {
	if c.Classification.MinConfidence < 0 || c.Classification.MinConfidence > 1 {
		return errors.New("classification.min_confidence must be between 0 and 1")
	}
	found := false
	for _, name := range c.Classification.Categories {
		if strings.EqualFold(name, c.Classification.DefaultCategory) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("classification.default_category %q must be listed in classification.categories", c.Classification.DefaultCategory)
	}
	switch c.Classification.PreferredLayout {
	case "categorized", "flat":
	default:
		return fmt.Errorf("classification.preferred_layout: unsupported value %q (use categorized or flat)", c.Classification.PreferredLayout)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
