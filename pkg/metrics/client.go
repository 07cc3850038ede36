package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup outcomes reported through RecordCacheLookup.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// ClientMetrics provides observability for WebDAV client operations.
//
// This interface is optional - if not provided to the client, a no-op
// implementation is used.
type ClientMetrics interface {
	// RecordRequest records one HTTP round trip.
	//
	// Parameters:
	//   - method: WebDAV method (e.g., "PROPFIND", "MKCOL", "PUT")
	//   - status: HTTP status code, 0 if no response was received
	//   - duration: Time taken including retries
	RecordRequest(method string, status int, duration time.Duration)

	// RecordRetry increments the retry counter for method.
	RecordRetry(method string)

	// RecordCacheLookup records a metadata cache read.
	//
	// Parameters:
	//   - namespace: "stat" or "list"
	//   - result: CacheHit, CacheMiss or CacheError
	RecordCacheLookup(namespace, result string)

	// RecordCacheWrite records a metadata cache write, skipped when the
	// cached record was already up to date.
	RecordCacheWrite(namespace string, skipped bool)

	// RecordInvalidation records a cache invalidation of n keys.
	RecordInvalidation(n int)
}

// clientMetrics is the Prometheus implementation of ClientMetrics.
type clientMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrites     *prometheus.CounterVec
	invalidations   prometheus.Counter
}

// NewClientMetrics creates a Prometheus-backed ClientMetrics registered on the
// global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not
// called).
func NewClientMetrics() ClientMetrics {
	if !IsEnabled() {
		return NewNoopClientMetrics()
	}
	return NewClientMetricsWith(GetRegistry())
}

// NewClientMetricsWith registers the client metrics on reg.
func NewClientMetricsWith(reg prometheus.Registerer) ClientMetrics {
	factory := promauto.With(reg)

	return &clientMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_requests_total",
				Help: "Total number of WebDAV requests by method and status code",
			},
			[]string{"method", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_request_duration_seconds",
				Help: "Duration of WebDAV requests in seconds, including retries",
				Buckets: []float64{
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
					30.0,  // 30s
				},
			},
			[]string{"method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_request_retries_total",
				Help: "Total number of retried WebDAV requests by method",
			},
			[]string{"method"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_cache_lookups_total",
				Help: "Total number of metadata cache lookups by namespace and result",
			},
			[]string{"namespace", "result"},
		),
		cacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_cache_writes_total",
				Help: "Total number of metadata cache writes by namespace",
			},
			[]string{"namespace", "skipped"},
		),
		invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_cache_invalidated_keys_total",
				Help: "Total number of metadata cache keys invalidated by mutations",
			},
		),
	}
}

func (m *clientMetrics) RecordRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *clientMetrics) RecordRetry(method string) {
	m.retriesTotal.WithLabelValues(method).Inc()
}

func (m *clientMetrics) RecordCacheLookup(namespace, result string) {
	m.cacheLookups.WithLabelValues(namespace, result).Inc()
}

func (m *clientMetrics) RecordCacheWrite(namespace string, skipped bool) {
	m.cacheWrites.WithLabelValues(namespace, strconv.FormatBool(skipped)).Inc()
}

func (m *clientMetrics) RecordInvalidation(n int) {
	m.invalidations.Add(float64(n))
}

// NewNoopClientMetrics returns a ClientMetrics that records nothing.
func NewNoopClientMetrics() ClientMetrics {
	return noopClientMetrics{}
}

type noopClientMetrics struct{}

func (noopClientMetrics) RecordRequest(string, int, time.Duration) {}
func (noopClientMetrics) RecordRetry(string)                       {}
func (noopClientMetrics) RecordCacheLookup(string, string)         {}
func (noopClientMetrics) RecordCacheWrite(string, bool)            {}
func (noopClientMetrics) RecordInvalidation(int)                   {}
