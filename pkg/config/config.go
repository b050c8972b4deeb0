package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Propscout cache configuration.
type Config struct {
	CacheDir     string  `yaml:"cache_dir"`
	DBPath       string  `yaml:"db_path"`
	TTLDays      int     `yaml:"ttl_days"`
	CostPerToken float64 `yaml:"cost_per_token"`
	LogLevel     string  `yaml:"log_level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		CacheDir:     "cache",
		TTLDays:      7,
		CostPerToken: 0.00001,
		LogLevel:     "info",
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// ResolveDBPath returns the explicit db_path if set, otherwise the default
// database file under the cache directory.
func (c *Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.CacheDir, "property_cache.db")
}

// TTL returns the default expiry window as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}
