package config

import (
	"time"

	"treenet/internal/alias"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Log      LogConfig      `yaml:"log"`
	Alias    alias.Params   `yaml:"alias"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	RDNS     RDNSConfig     `yaml:"rdns"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// InputConfig locates the measurement dataset
type InputConfig struct {
	Path   string `yaml:"path,omitempty"`
	Format string `yaml:"format"` // auto, yaml, json, nmap
}

// OutputConfig holds report destinations; empty paths mean stdout or nothing
type OutputConfig struct {
	Dump        string `yaml:"dump,omitempty"`
	Graph       string `yaml:"graph,omitempty"`
	GraphFormat string `yaml:"graph_format"` // text, json, yaml
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr     string   `yaml:"addr"`
	Watch    bool     `yaml:"watch"`
	Debounce Duration `yaml:"debounce"`
}

// RDNSConfig holds reverse DNS enrichment settings
type RDNSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Server  string   `yaml:"server"`
	Timeout Duration `yaml:"timeout"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
