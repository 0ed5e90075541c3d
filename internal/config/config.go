package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	LibraryDir string `toml:"library_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Migration contains the safety and execution knobs of the migration engine.
type Migration struct {
	Backup                  bool `toml:"backup"`
	KeepBackup              bool `toml:"keep_backup"`
	BackupChecksums         bool `toml:"backup_checksums"`
	TimeoutSeconds          int  `toml:"timeout_seconds"`
	LockPollIntervalMillis  int  `toml:"lock_poll_interval_ms"`
	LockPollTimeoutMillis   int  `toml:"lock_poll_timeout_ms"`
	ConsecutiveFailureLimit int  `toml:"consecutive_failure_limit"`
	Workers                 int  `toml:"workers"`
	ExplicitDirs            bool `toml:"explicit_dirs"`
}

// Classification contains configuration for release categorization and
// compliance scoring.
type Classification struct {
	DefaultCategory string   `toml:"default_category"`
	Categories      []string `toml:"categories"`
	MinConfidence   float64  `toml:"min_confidence"`
	PreferredLayout string   `toml:"preferred_layout"`
}

// Config encapsulates all configuration values for reshelve.
//
// Configuration sections by subsystem:
//   - Paths: collection root, state directory, logs and IPC socket
//   - Logging: log format and level
//   - Migration: backup policy, timeouts, failure thresholds, worker count
//   - Classification: category folder names and compliance preferences
type Config struct {
	Paths          Paths          `toml:"paths"`
	Logging        Logging        `toml:"logging"`
	Migration      Migration      `toml:"migration"`
	Classification Classification `toml:"classification"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reshelve/config.toml")
}

// Load locates, decodes and validates the configuration. It returns the
// config with every path expanded, the file it came from (or the default
// location when none exists) and whether that file existed. Unknown keys
// are rejected so a misspelt option never silently falls back to its default.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := toml.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath picks the explicit path when given; otherwise the first
// existing file of ~/.config/reshelve/config.toml and ./reshelve.toml.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reshelve.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		return !info.IsDir(), nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat config: %w", err)
	}
}

// EnsureDirectories creates the state and log directories. The library
// directory is never created: a missing collection is a user error.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath is the location of the append-only migration history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// MetadataDir holds the per-artist JSON metadata documents.
func (c *Config) MetadataDir() string {
	return filepath.Join(c.Paths.StateDir, "metadata")
}

// LockDir holds the per-artist lease files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// ArtistPath resolves an artist identifier to its folder in the collection.
func (c *Config) ArtistPath(artistID string) string {
	return filepath.Join(c.Paths.LibraryDir, artistID)
}

// MigrationTimeout is the soft timeout applied to a single migration attempt.
func (c *Config) MigrationTimeout() time.Duration {
	return time.Duration(c.Migration.TimeoutSeconds) * time.Second
}

// LockPollInterval is the delay between open-file probes.
func (c *Config) LockPollInterval() time.Duration {
	return time.Duration(c.Migration.LockPollIntervalMillis) * time.Millisecond
}

// LockPollTimeout bounds how long open-file detection keeps polling.
func (c *Config) LockPollTimeout() time.Duration {
	return time.Duration(c.Migration.LockPollTimeoutMillis) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path. A non-empty
// libraryDir replaces the sample's library_dir value.
func CreateSample(path, libraryDir string) error {
	content := sampleConfig
	if libraryDir != "" {
		content = strings.Replace(content, `library_dir = "~/Music"`,
			"library_dir = "+strconv.Quote(libraryDir), 1)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
