package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:            "/var/lib/nimbusdb",
			PageSize:           4096,
			BufferPoolSize:     "256MB",
			CacheSize:          10000,
			CheckpointInterval: 5 * time.Minute,
			SyncWrites:         true,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Archive: ArchiveConfig{
			Enabled:    false,
			MaxAge:     7 * 24 * time.Hour,
			MaxSize:    100 * 1024 * 1024,
			Compress:   true,
			RetainDays: 0,
		},
		Backup: BackupConfig{
			Dir:      "/var/lib/nimbusdb/backup",
			Compress: true,
		},
	}
}
