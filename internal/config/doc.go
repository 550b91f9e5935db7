// Package config provides configuration parsing and management for
// NimbusDB.
//
// # Overview
//
// The config package handles loading, parsing, and validating
// configuration from YAML files and environment variables, using
// gopkg.in/yaml.v3 for decoding and github.com/go-playground/validator/v10
// for struct validation. It supports:
//
//   - YAML configuration files
//   - Environment variable overrides via ${VAR}/${VAR:-default}
//   - Default values for all settings (open() works with a nil/empty file)
//   - Struct-tag-driven validation
//   - Hot reload, either on demand (ConfigManager.Reload) or on file
//     change (ConfigWatcher)
//
// # Configuration Structure
//
// The main Config struct contains every setting open() and the
// cmd/nimbusdb host process need:
//
//	type Config struct {
//	    Storage StorageConfig // data directory, page size, buffer pool
//	    Logging LogConfig     // level, format, output
//	    Archive ArchiveConfig // internal/logging gzip-rotated audit archive
//	    Backup  BackupConfig  // online_backup/restore defaults
//	}
//
// # Loading Configuration
//
// Load configuration from a YAML file:
//
//	cfg, err := config.LoadConfig("/etc/nimbusdb/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or use defaults:
//
//	cfg := config.DefaultConfig()
//
// # Environment Variables
//
// Configuration values can reference environment variables directly in
// the YAML document:
//
//	storage:
//	  dataDir: "${NIMBUSDB_DATA_DIR:-/var/lib/nimbusdb}"
//
// # Example Configuration
//
// A typical configuration file:
//
//	storage:
//	  dataDir: "/var/lib/nimbusdb"
//	  walDir: "/var/lib/nimbusdb/wal"
//	  pageSize: 4096
//	  bufferPoolSize: "256MB"
//	  checkpointInterval: 5m
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "/var/log/nimbusdb/nimbusdb.log"
//
//	archive:
//	  enabled: true
//	  dir: "/var/lib/nimbusdb/archive"
//	  maxAge: 168h
//	  maxSize: 104857600
//	  compress: true
//
//	backup:
//	  dir: "/var/lib/nimbusdb/backup"
//	  compress: true
package config
