// Package config provides configuration parsing and management for NimbusDB.
package config

import "time"

// Config holds the complete set of options open() can be configured with,
// plus the ambient logging/archive/backup settings a long-running host
// process (cmd/nimbusdb) layers on top of the library.
type Config struct {
	Storage StorageConfig `yaml:"storage" validate:"required"`
	Logging LogConfig     `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
	Backup  BackupConfig  `yaml:"backup"`
}

// StorageConfig controls the on-disk layout and page cache open() builds
// the database over.
type StorageConfig struct {
	DataDir            string        `yaml:"dataDir" validate:"required"`
	WALDir             string        `yaml:"walDir"`
	PageSize           int           `yaml:"pageSize" validate:"omitempty,oneof=4096 8192 16384 32768"`
	BufferPoolSize     string        `yaml:"bufferPoolSize" validate:"omitempty,datasize"`
	CacheSize          int           `yaml:"cacheSize" validate:"omitempty,min=0"`
	CheckpointInterval time.Duration `yaml:"checkpointInterval" validate:"omitempty,min=0"`
	SyncWrites         bool          `yaml:"syncWrites"`
}

// LogConfig controls internal/logging.New.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `yaml:"output"`
}

// ArchiveConfig controls internal/logging.NewRotating's archive side
// channel. Fields mirror logging.ArchiveConfig one-for-one; config keeps
// its own copy so a YAML document never needs to import the logging
// package's Go types directly.
type ArchiveConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Dir        string        `yaml:"dir" validate:"required_if=Enabled true"`
	MaxAge     time.Duration `yaml:"maxAge" validate:"omitempty,min=0"`
	MaxSize    int64         `yaml:"maxSize" validate:"omitempty,min=0"`
	Compress   bool          `yaml:"compress"`
	RetainDays int           `yaml:"retainDays" validate:"omitempty,min=0"`
}

// BackupConfig supplies online_backup/restore's default target directory
// and whether the archive it produces is gzip-compressed.
type BackupConfig struct {
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"`
}
