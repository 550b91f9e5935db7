package main

import (
	"github.com/nimbusdb/nimbusdb"
	"github.com/nimbusdb/nimbusdb/internal/config"
)

// loadConfig reads configFile if set, falling back to built-in defaults.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(configFile)
}

func openDB(configFile string) (*nimbusdb.DB, error) {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return nil, err
	}
	return nimbusdb.Open(cfg)
}
