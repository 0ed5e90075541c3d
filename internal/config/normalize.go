package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeClassification()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("RESHELVE_LIBRARY_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.LibraryDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" && c.Paths.LibraryDir != "" {
		c.Paths.StateDir = filepath.Join(c.Paths.LibraryDir, defaultStateDirName)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" && c.Paths.StateDir != "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.StateDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(strings.TrimSpace(c.Paths.SocketPath)); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeClassification() {
	c.Classification.DefaultCategory = strings.TrimSpace(c.Classification.DefaultCategory)
	if c.Classification.DefaultCategory == "" {
		c.Classification.DefaultCategory = defaultCategory
	}
	seen := make(map[string]struct{}, len(c.Classification.Categories))
	categories := make([]string, 0, len(c.Classification.Categories))
	for _, name := range c.Classification.Categories {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, trimmed)
	}
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	c.Classification.Categories = categories
	c.Classification.PreferredLayout = strings.ToLower(strings.TrimSpace(c.Classification.PreferredLayout))
	if c.Classification.PreferredLayout == "" {
		c.Classification.PreferredLayout = defaultPreferredLayout
	}
}
