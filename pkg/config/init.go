package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# DittoDAV Configuration File
#
# Values can be overridden with DITTODAV_* environment variables
# (e.g. DITTODAV_SERVER_PASSWORD) or command line flags.
`

var sectionComments = map[string]string{
	"logging": "Log output. level: DEBUG, INFO, WARN, ERROR; format: text, json;\n" +
		"output: stdout, stderr or a file path (rotated by size).",
	"server": "WebDAV endpoint. Hrefs returned by the server are resolved relative to\n" +
		"the path of this URL. Transient failures (5xx, 429, network errors) are\n" +
		"retried with exponential backoff; MKCOL is never retried.",
	"cache": "Metadata cache. type: none, memory, badger, ristretto. Only the section\n" +
		"matching the type is used. An empty prefix is derived from server.url.",
	"metrics": "Prometheus metrics, optionally written to a node_exporter textfile on exit.",
}

// InitConfig writes a sample configuration to the default location.
//
// Returns the path written, or an error if the file exists and force is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigAt(path, force)
}

// InitConfigAt writes a sample configuration to path.
func InitConfigAt(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := GenerateConfigYAML(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// The file may hold credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateConfigYAML renders cfg as YAML with a comment above each section.
func GenerateConfigYAML(cfg *Config) ([]byte, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}

	mapping := &root
	if mapping.Kind == yaml.DocumentNode && len(mapping.Content) > 0 {
		mapping = mapping.Content[0]
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
