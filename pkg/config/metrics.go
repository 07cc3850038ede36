package config

import (
	"sync"

	"github.com/marmos91/dittodav/pkg/metrics"
)

// Collectors register on the global registry and may only be created once
// per process.
var (
	clientMetricsOnce sync.Once
	clientMetrics     metrics.ClientMetrics
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// ClientMetrics is the collector for the transport and cache (never nil,
	// uses noop if disabled)
	ClientMetrics metrics.ClientMetrics

	// Textfile is where Flush writes the metrics ("" disables it)
	Textfile string
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			ClientMetrics: metrics.NewNoopClientMetrics(),
		}
	}

	metrics.InitRegistry()
	clientMetricsOnce.Do(func() {
		clientMetrics = metrics.NewClientMetrics()
	})

	return &MetricsResult{
		ClientMetrics: clientMetrics,
		Textfile:      cfg.Metrics.Textfile,
	}
}

// Flush writes the collected metrics to the configured textfile. It is a
// no-op when metrics are disabled or no textfile is configured.
func (m *MetricsResult) Flush() error {
	if m.Textfile == "" || !metrics.IsEnabled() {
		return nil
	}
	return metrics.WriteTextfile(m.Textfile)
}
