package testsupport

import (
	"path/filepath"
	"testing"

	"reshelve/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The library lives at <base>/library and the state directory inside it, as
// in a default installation.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LibraryDir = filepath.Join(base, "library")
	cfgVal.Paths.StateDir = filepath.Join(cfgVal.Paths.LibraryDir, ".reshelve")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "reshelve.sock")
	cfgVal.Migration.LockPollIntervalMillis = 10
	cfgVal.Migration.LockPollTimeoutMillis = 30

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithoutBackup disables backups by default.
func WithoutBackup() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Migration.Backup = false
	}
}

// WithKeepBackup retains backups after successful migrations.
func WithKeepBackup() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Migration.KeepBackup = true
	}
}

// WithExplicitDirs makes plans carry create_dir operations.
func WithExplicitDirs() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Migration.ExplicitDirs = true
	}
}

// WithFailureLimit overrides the consecutive failure limit.
func WithFailureLimit(limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Migration.ConsecutiveFailureLimit = limit
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LibraryDir)
}
