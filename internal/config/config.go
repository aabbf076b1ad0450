// Package config provides configuration management for treenet.
//
// Config file locations (priority order):
//  1. $TREENET_CONFIG
//  2. ./treenet.yaml
//  3. ~/.config/treenet/config.yaml
//  4. /etc/treenet/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"treenet/internal/alias"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid config")

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Log:      LogConfig{Level: "info"},
		Alias:    alias.DefaultParams(),
		Input:    InputConfig{Format: "auto"},
		Output:   OutputConfig{GraphFormat: "text"},
		Database: DatabaseConfig{Path: "./treenet.db"},
		Server: ServerConfig{
			Addr:     ":3000",
			Debounce: Duration(500 * time.Millisecond),
		},
		RDNS: RDNSConfig{
			Server:  "127.0.0.1:53",
			Timeout: Duration(2 * time.Second),
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Alias.MaxRollovers == 0 {
		c.Alias.MaxRollovers = def.Alias.MaxRollovers
	}
	if c.Alias.RolloverTolerance == 0 {
		c.Alias.RolloverTolerance = def.Alias.RolloverTolerance
	}
	if c.Alias.AllyMaxDiff == 0 {
		c.Alias.AllyMaxDiff = def.Alias.AllyMaxDiff
	}
	if c.Input.Format == "" {
		c.Input.Format = def.Input.Format
	}
	if c.Output.GraphFormat == "" {
		c.Output.GraphFormat = def.Output.GraphFormat
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.Debounce == 0 {
		c.Server.Debounce = def.Server.Debounce
	}
	if c.RDNS.Server == "" {
		c.RDNS.Server = def.RDNS.Server
	}
	if c.RDNS.Timeout == 0 {
		c.RDNS.Timeout = def.RDNS.Timeout
	}
}

// Validate checks values that defaults cannot repair
func (c *Config) Validate() error {
	if c.Alias.MaxRollovers < 0 {
		return fmt.Errorf("%w: alias.max_rollovers must not be negative", ErrInvalidConfig)
	}
	if c.Alias.RolloverTolerance < 0 || c.Alias.RolloverTolerance >= 0.5 {
		return fmt.Errorf("%w: alias.rollover_tolerance must be in [0, 0.5)", ErrInvalidConfig)
	}
	if c.Alias.VelocityBaseTolerance < 0 || c.Alias.VelocityRatioTolerance < 0 {
		return fmt.Errorf("%w: velocity tolerances must not be negative", ErrInvalidConfig)
	}
	switch c.Input.Format {
	case "auto", "yaml", "json", "nmap":
	default:
		return fmt.Errorf("%w: unknown input format %q", ErrInvalidConfig, c.Input.Format)
	}
	switch c.Output.GraphFormat {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: unknown graph format %q", ErrInvalidConfig, c.Output.GraphFormat)
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Input: %s (%s), Database: %s\n", c.Input.Path, c.Input.Format, c.Database.Path)
	summary += fmt.Sprintf("Alias: rollovers=%d tolerance=%.2f ally=%d velocity=%.1f+%.2fx\n",
		c.Alias.MaxRollovers, c.Alias.RolloverTolerance, c.Alias.AllyMaxDiff,
		c.Alias.VelocityBaseTolerance, c.Alias.VelocityRatioTolerance)
	summary += fmt.Sprintf("Reverse DNS: %v (%s)", c.RDNS.Enabled, c.RDNS.Server)
	return summary
}
