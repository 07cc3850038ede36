package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/transport"
)

// Cache store types.
const (
	CacheTypeNone      = "none"
	CacheTypeMemory    = "memory"
	CacheTypeBadger    = "badger"
	CacheTypeRistretto = "ristretto"
)

// Config represents the complete DittoDAV configuration.
//
// This structure captures all configurable aspects of the client including:
//   - Logging configuration
//   - The WebDAV server connection
//   - Metadata cache selection and configuration (store-specific)
//   - Metrics collection
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTODAV_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each cache store defines its own configuration type. The Config struct
// contains type-specific sections (e.g., cache.memory, cache.badger) and only
// the section matching the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging logger.Config `mapstructure:"logging" yaml:"logging"`

	// Server is the WebDAV endpoint and how to talk to it
	Server transport.Config `mapstructure:"server" yaml:"server"`

	// Cache specifies the metadata cache store and its configuration
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CacheConfig specifies metadata cache configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type CacheConfig struct {
	// Type specifies which cache store implementation to use
	// Valid values: none, memory, badger, ristretto
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=none memory badger ristretto"`

	// TTL is how long a cached record stays valid
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`

	// Prefix namespaces cache keys. Empty derives one from the server URL,
	// so clients of different servers can share a persistent store.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// Ristretto contains ristretto-specific configuration
	// Only used when Type = "ristretto"
	Ristretto map[string]any `mapstructure:"ristretto" yaml:"ristretto"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns on Prometheus metrics collection
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Textfile is where metrics are written on exit, in the node_exporter
	// textfile collector format. Empty disables the dump.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// flagBindings maps CLI flag names to configuration keys.
var flagBindings = map[string]string{
	"url":        "server.url",
	"username":   "server.username",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"cache":      "cache.type",
}

// Load loads configuration from flags, file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. CLI flags that were explicitly set
//  2. Environment variables (DITTODAV_*)
//  3. Configuration file
//  4. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//   - flags: Parsed CLI flags; may be nil
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Configure viper
	if err := setupViper(v, configPath, flags); err != nil {
		return nil, err
	}

	// Read configuration file if it exists
	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables, flags and config
// file settings.
func setupViper(v *viper.Viper, configPath string, flags *pflag.FlagSet) error {
	// Environment variables use DITTODAV_ prefix and underscores
	// Example: DITTODAV_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTODAV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about. Credentials
	// are usually absent from the file, so bind them explicitly.
	for _, key := range []string{"server.url", "server.username", "server.password"} {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/dittodav/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodav")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittodav")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
