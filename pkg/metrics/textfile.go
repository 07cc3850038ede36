package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile writes every metric in the global registry to path in the
// Prometheus text exposition format, for collection by node_exporter's
// textfile collector.
//
// The file is written atomically (temporary file plus rename). Returns an
// error if metrics are disabled.
func WriteTextfile(path string) error {
	reg := GetRegistry()
	if reg == nil {
		return errors.New("metrics are disabled")
	}
	return WriteTextfileFrom(reg, path)
}

// WriteTextfileFrom writes the metrics gathered from g to path.
func WriteTextfileFrom(g prometheus.Gatherer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
