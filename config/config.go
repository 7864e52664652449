// Package config loads the surveyd daemon configuration from an optional TOML
// file, with sane defaults for every field. Command line flags override file
// values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// APIConfig holds the HTTP API listener settings.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Config is the full surveyd daemon configuration.
type Config struct {
	// DataDir is the directory holding the key-value database.
	DataDir string `toml:"dataDir"`
	// DBType selects the dvote db backend (pebble or mongo).
	DBType string `toml:"dbType"`
	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `toml:"logLevel"`
	// LogOutput is stdout, stderr or a file path.
	LogOutput string `toml:"logOutput"`
	// Curve selects the elliptic curve backend for the coprocessor.
	Curve string    `toml:"curve"`
	API   APIConfig `toml:"api"`
}

// Default returns a configuration with every field set to its default value.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:   filepath.Join(home, ".surveyd"),
		DBType:    "pebble",
		LogLevel:  "info",
		LogOutput: "stdout",
		Curve:     "bjj_gnark",
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return cfg, nil
}
