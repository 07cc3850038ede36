package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	// Point the default location at a temporary directory
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DittoDAV Configuration File",
		"# Metadata cache.",
		"logging:",
		"server:",
		"cache:",
		"metrics:",
		SampleServerURL,
	}

	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	// Verify the generated file is valid YAML
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
	if cfg.Cache.Type != CacheTypeMemory {
		t.Errorf("Expected cache type 'memory', got %q", cfg.Cache.Type)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Expected mode 0600, got %o", info.Mode().Perm())
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_ForceOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	if err := os.WriteFile(configPath, []byte("modified"), 0600); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if string(content) == "modified" {
		t.Error("Config file was not overwritten")
	}
}

func TestInitConfig_GeneratedFileLoads(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := InitConfigAt(configPath, false); err != nil {
		t.Fatalf("InitConfigAt failed: %v", err)
	}

	cfg, err := Load(configPath, nil)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	want := GetDefaultConfig()
	if cfg.Server.URL != want.Server.URL {
		t.Errorf("Expected URL %q, got %q", want.Server.URL, cfg.Server.URL)
	}
	if cfg.Cache.TTL != want.Cache.TTL {
		t.Errorf("Expected TTL %v, got %v", want.Cache.TTL, cfg.Cache.TTL)
	}
	if cfg.Server.Retry != want.Server.Retry {
		t.Errorf("Expected retry %+v, got %+v", want.Server.Retry, cfg.Server.Retry)
	}
}
