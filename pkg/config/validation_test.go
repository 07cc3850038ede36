package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "INVALID" },
			wantErr: "oneof",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "oneof",
		},
		{
			name:    "missing url",
			mutate:  func(c *Config) { c.Server.URL = "" },
			wantErr: "required",
		},
		{
			name:    "not a url",
			mutate:  func(c *Config) { c.Server.URL = "webdav" },
			wantErr: "url",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.Server.URL = "ftp://example.com/" },
			wantErr: "scheme",
		},
		{
			name:    "password without username",
			mutate:  func(c *Config) { c.Server.Password = "secret" },
			wantErr: "username",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Server.Timeout = -time.Second },
			wantErr: "gte",
		},
		{
			name:    "too many retries",
			mutate:  func(c *Config) { c.Server.Retry.MaxRetries = 50 },
			wantErr: "lte",
		},
		{
			name: "max delay below base delay",
			mutate: func(c *Config) {
				c.Server.Retry.BaseDelay = time.Second
				c.Server.Retry.MaxDelay = time.Millisecond
			},
			wantErr: "max_delay",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.Server.Retry.Jitter = 2 },
			wantErr: "lte",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Server.RateLimit.RequestsPerSecond = -1 },
			wantErr: "gte",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *Config) { c.Cache.Type = "redis" },
			wantErr: "oneof",
		},
		{
			name: "badger without path",
			mutate: func(c *Config) {
				c.Cache.Type = CacheTypeBadger
				c.Cache.Badger = map[string]any{"db_path": ""}
			},
			wantErr: "db_path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_BadgerInMemoryNeedsNoPath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Type = CacheTypeBadger
	cfg.Cache.Badger = map[string]any{"in_memory": true}

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected in-memory badger to be valid, got: %v", err)
	}
}

func TestValidate_LowercaseLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "debug"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected lowercase level to be accepted, got: %v", err)
	}
}
