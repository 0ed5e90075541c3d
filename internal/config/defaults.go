package config

const (
	defaultLibraryDir              = "~/Music"
	defaultLogDir                  = "~/.local/share/reshelve/logs"
	defaultStateDirName            = ".reshelve"
	defaultSocketName              = "reshelve.sock"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultMigrationTimeoutSeconds = 1800
	defaultLockPollIntervalMillis  = 200
	defaultLockPollTimeoutMillis   = 2000
	defaultConsecutiveFailureLimit = 3
	defaultWorkers                 = 2
	defaultCategory                = "Album"
	defaultMinConfidence           = 0.5
	defaultPreferredLayout         = "categorized"
)

// DefaultCategories lists the canonical category folder names.
func DefaultCategories() []string {
	return []string{
		"Album",
		"Live",
		"Compilation",
		"EP",
		"Single",
		"Demo",
		"Soundtrack",
		"Remix",
		"Bootleg",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Migration: Migration{
			Backup:                  true,
			KeepBackup:              false,
			BackupChecksums:         true,
			TimeoutSeconds:          defaultMigrationTimeoutSeconds,
			LockPollIntervalMillis:  defaultLockPollIntervalMillis,
			LockPollTimeoutMillis:   defaultLockPollTimeoutMillis,
			ConsecutiveFailureLimit: defaultConsecutiveFailureLimit,
			Workers:                 defaultWorkers,
		},
		Classification: Classification{
			DefaultCategory: defaultCategory,
			Categories:      DefaultCategories(),
			MinConfidence:   defaultMinConfidence,
			PreferredLayout: defaultPreferredLayout,
		},
	}
}
