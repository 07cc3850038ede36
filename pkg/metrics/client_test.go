package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetricsWith(reg).(*clientMetrics)

	m.RecordRequest("PROPFIND", 207, 15*time.Millisecond)
	m.RecordRequest("PROPFIND", 207, 25*time.Millisecond)
	m.RecordRequest("MKCOL", 201, time.Millisecond)
	m.RecordRetry("PUT")
	m.RecordCacheLookup("stat", CacheHit)
	m.RecordCacheLookup("stat", CacheMiss)
	m.RecordCacheLookup("stat", CacheMiss)
	m.RecordCacheWrite("stat", true)
	m.RecordInvalidation(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("PROPFIND", "207")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("MKCOL", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retriesTotal.WithLabelValues("PUT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("stat", CacheHit)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("stat", CacheMiss)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheWrites.WithLabelValues("stat", "true")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.invalidations))
}

func TestNoopClientMetrics(t *testing.T) {
	m := NewNoopClientMetrics()
	m.RecordRequest("GET", 200, time.Second)
	m.RecordRetry("GET")
	m.RecordCacheLookup("list", CacheError)
	m.RecordCacheWrite("list", false)
	m.RecordInvalidation(1)
}

func TestWriteTextfileFrom(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClientMetricsWith(reg)
	m.RecordRequest("DELETE", 204, time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "dittodav.prom")
	require.NoError(t, WriteTextfileFrom(reg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dittodav_requests_total{code="204",method="DELETE"} 1`)
}
