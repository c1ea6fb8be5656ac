/*
Package config loads server configuration.

PURPOSE:
  YAML file with flag overrides. Every field has a sane default so the
  server starts with no config file at all.

EXAMPLE (config.yaml):
  port: 8080
  db_path: ./data/market.db
  weekly_quota: 3
  retry_attempts: 5
  low_stock_threshold: 5
  reset_check_interval: 1h
  allowed_origins:
    - http://localhost:5173
*/
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port              int           `yaml:"port"`
	DBPath            string        `yaml:"db_path"`
	WeeklyQuota       int           `yaml:"weekly_quota"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	LowStockThreshold int           `yaml:"low_stock_threshold"`
	ResetInterval     time.Duration `yaml:"reset_check_interval"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Port:              8080,
		DBPath:            "market.db",
		WeeklyQuota:       3,
		RetryAttempts:     5,
		LowStockThreshold: 5,
		ResetInterval:     time.Hour,
		AllowedOrigins:    []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
