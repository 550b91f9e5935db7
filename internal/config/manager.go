package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ConfigManager manages runtime configuration with hot reload support.
type ConfigManager struct {
	config     *Config
	configFile string
	mu         sync.RWMutex
	onUpdate   func(old, new *Config)
}

// NewConfigManager creates a new config manager.
func NewConfigManager(cfg *Config, configFile string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configFile: configFile,
	}
}

// SetOnUpdate sets the callback for config updates.
func (m *ConfigManager) SetOnUpdate(fn func(old, new *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// GetConfig returns the current config.
func (m *ConfigManager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetConfigFile returns the config file path.
func (m *ConfigManager) GetConfigFile() string {
	return m.configFile
}

// ConfigJSON represents config in JSON format, for reporting through
// meta() or an admin command.
type ConfigJSON struct {
	Storage StorageConfigJSON `json:"storage"`
	Logging LogConfigJSON     `json:"logging"`
	Archive ArchiveConfigJSON `json:"archive"`
	Backup  BackupConfigJSON  `json:"backup"`
}

// StorageConfigJSON represents storage config in JSON.
type StorageConfigJSON struct {
	DataDir            string `json:"dataDir"`
	WALDir             string `json:"walDir,omitempty"`
	PageSize           int    `json:"pageSize"`
	BufferPoolSize     string `json:"bufferPoolSize"`
	CacheSize          int    `json:"cacheSize"`
	CheckpointInterval string `json:"checkpointInterval"`
	SyncWrites         bool   `json:"syncWrites"`
}

// LogConfigJSON represents logging config in JSON.
type LogConfigJSON struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// ArchiveConfigJSON represents archive config in JSON.
type ArchiveConfigJSON struct {
	Enabled    bool   `json:"enabled"`
	Dir        string `json:"dir,omitempty"`
	MaxAge     string `json:"maxAge"`
	MaxSize    int64  `json:"maxSize"`
	Compress   bool   `json:"compress"`
	RetainDays int    `json:"retainDays"`
}

// BackupConfigJSON represents backup config in JSON.
type BackupConfigJSON struct {
	Dir      string `json:"dir"`
	Compress bool   `json:"compress"`
}

// ToJSON returns config as a JSON-serializable struct.
func (m *ConfigManager) ToJSON() *ConfigJSON {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toJSON(m.config)
}

func toJSON(c *Config) *ConfigJSON {
	return &ConfigJSON{
		Storage: StorageConfigJSON{
			DataDir:            c.Storage.DataDir,
			WALDir:             c.Storage.WALDir,
			PageSize:           c.Storage.PageSize,
			BufferPoolSize:     c.Storage.BufferPoolSize,
			CacheSize:          c.Storage.CacheSize,
			CheckpointInterval: c.Storage.CheckpointInterval.String(),
			SyncWrites:         c.Storage.SyncWrites,
		},
		Logging: LogConfigJSON{
			Level:  c.Logging.Level,
			Format: c.Logging.Format,
			Output: c.Logging.Output,
		},
		Archive: ArchiveConfigJSON{
			Enabled:    c.Archive.Enabled,
			Dir:        c.Archive.Dir,
			MaxAge:     c.Archive.MaxAge.String(),
			MaxSize:    c.Archive.MaxSize,
			Compress:   c.Archive.Compress,
			RetainDays: c.Archive.RetainDays,
		},
		Backup: BackupConfigJSON{
			Dir:      c.Backup.Dir,
			Compress: c.Backup.Compress,
		},
	}
}

// GetSection returns a specific config section by name.
func (m *ConfigManager) GetSection(section string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j := toJSON(m.config)
	switch strings.ToLower(section) {
	case "storage":
		return j.Storage, nil
	case "logging":
		return j.Logging, nil
	case "archive":
		return j.Archive, nil
	case "backup":
		return j.Backup, nil
	default:
		return nil, fmt.Errorf("unknown section: %s", section)
	}
}

// UpdateSection updates a config section with hot-reload support.
func (m *ConfigManager) UpdateSection(section string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	newConfig := copyConfig(oldConfig)

	switch strings.ToLower(section) {
	case "logging":
		if v, ok := data["level"].(string); ok {
			newConfig.Logging.Level = v
		}
		if v, ok := data["format"].(string); ok {
			newConfig.Logging.Format = v
		}
		if v, ok := data["output"].(string); ok {
			newConfig.Logging.Output = v
		}
	case "storage":
		if v, ok := data["cacheSize"].(float64); ok {
			newConfig.Storage.CacheSize = int(v)
		}
		if v, ok := data["checkpointInterval"].(string); ok {
			if d, err := time.ParseDuration(v); err == nil {
				newConfig.Storage.CheckpointInterval = d
			}
		}
		if v, ok := data["syncWrites"].(bool); ok {
			newConfig.Storage.SyncWrites = v
		}
	case "archive":
		if v, ok := data["enabled"].(bool); ok {
			newConfig.Archive.Enabled = v
		}
		if v, ok := data["maxAge"].(string); ok {
			if d, err := time.ParseDuration(v); err == nil {
				newConfig.Archive.MaxAge = d
			}
		}
		if v, ok := data["retainDays"].(float64); ok {
			newConfig.Archive.RetainDays = int(v)
		}
	case "backup":
		if v, ok := data["dir"].(string); ok {
			newConfig.Backup.Dir = v
		}
		if v, ok := data["compress"].(bool); ok {
			newConfig.Backup.Compress = v
		}
	default:
		return fmt.Errorf("unknown or read-only section: %s", section)
	}

	if errs := ValidateConfig(newConfig); len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs[0])
	}

	m.config = newConfig

	if m.onUpdate != nil {
		go m.onUpdate(oldConfig, newConfig)
	}

	return nil
}

// Reload reloads config from file.
func (m *ConfigManager) Reload() error {
	if m.configFile == "" {
		return fmt.Errorf("no config file configured")
	}

	newConfig, err := LoadConfig(m.configFile)
	if err != nil {
		return errors.Wrap(err, "config: reload")
	}

	m.mu.Lock()
	oldConfig := m.config
	m.config = newConfig
	onUpdate := m.onUpdate
	m.mu.Unlock()

	if onUpdate != nil {
		go onUpdate(oldConfig, newConfig)
	}

	return nil
}

// SaveToFile saves the current config to file as YAML.
func (m *ConfigManager) SaveToFile() error {
	if m.configFile == "" {
		return fmt.Errorf("no config file configured")
	}

	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}

	if err := os.WriteFile(m.configFile, data, 0644); err != nil {
		return errors.Wrapf(err, "config: writing %s", m.configFile)
	}

	return nil
}

// copyConfig creates a shallow copy of config, safe for field-by-field
// mutation since every field UpdateSection touches is a value type.
func copyConfig(c *Config) *Config {
	newConfig := *c
	return &newConfig
}
