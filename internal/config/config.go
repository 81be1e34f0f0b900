// Package config loads CLI settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvEndpoint   = "JOTTER_ENDPOINT"
	EnvWSEndpoint = "JOTTER_WS_ENDPOINT"
	EnvAPIKey     = "JOTTER_API_KEY"
)

// Config is the CLI configuration.
type Config struct {
	Endpoint   string        `yaml:"endpoint"`
	WSEndpoint string        `yaml:"ws_endpoint,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Serve      Serve         `yaml:"serve"`
}

// Serve configures the development server.
type Serve struct {
	Addr    string `yaml:"addr"`
	Backend string `yaml:"backend"` // memory, fs or sqlite
	Dir     string `yaml:"dir,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Endpoint: "http://localhost:8080/graphql",
		Timeout:  30 * time.Second,
		Serve: Serve{
			Addr:    "localhost:8080",
			Backend: "memory",
			Dir:     "notes",
			DSN:     "notes.sqlite3",
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/jotter/config.yaml, falling back to the
// platform's user config directory.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		var err error
		dir, err = os.UserConfigDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "jotter", "config.yaml"), nil
}

// Load reads path over the defaults. A missing file is only an error when
// required is set (an explicit --config).
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
	if v, ok := lookup(EnvWSEndpoint); ok && v != "" {
		c.WSEndpoint = v
	}
	if v, ok := lookup(EnvAPIKey); ok {
		c.APIKey = v
	}
}

// Save writes the configuration to path, creating parent directories.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
