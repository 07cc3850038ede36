package config

import (
	"strings"
	"time"

	"github.com/marmos91/dittodav/pkg/cache/memory"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/transport"
)

// SampleServerURL is written to generated configuration files.
const SampleServerURL = "https://cloud.example.com/remote.php/webdav/"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - The server URL has no default and must be configured
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyCacheDefaults(&cfg.Cache)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *Config) {
	l := &cfg.Logging
	if l.Level == "" {
		l.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	l.Level = strings.ToUpper(l.Level)

	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stderr"
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 3
	}
}

// applyServerDefaults sets connection defaults.
func applyServerDefaults(cfg *transport.Config) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	// A zero retry section means "not configured"; an explicit
	// max_retries: 0 alongside other retry settings is preserved.
	if cfg.Retry == (transport.RetryPolicy{}) {
		cfg.Retry = transport.DefaultRetryPolicy
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = transport.DefaultRetryPolicy.BaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = transport.DefaultRetryPolicy.MaxDelay
	}

	// RequestsPerSecond defaults to 0 (unthrottled)
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = max(1, int(cfg.RateLimit.RequestsPerSecond))
	}

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
}

// applyCacheDefaults sets cache store defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = CacheTypeMemory
	}
	if cfg.TTL == 0 {
		cfg.TTL = dav.DefaultCacheTTL
	}

	// Initialize maps if nil
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Ristretto == nil {
		cfg.Ristretto = make(map[string]any)
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Memory["max_entries"]; !ok {
		cfg.Memory["max_entries"] = memory.DefaultMaxEntries
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = defaultBadgerPath()
	}
	if _, ok := cfg.Ristretto["max_cost"]; !ok {
		cfg.Ristretto["max_cost"] = int64(64 << 20) // 64MB
	}
	if _, ok := cfg.Ristretto["num_counters"]; !ok {
		cfg.Ristretto["num_counters"] = int64(1_000_000)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Server: transport.Config{
			URL: SampleServerURL,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
