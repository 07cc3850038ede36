package dav

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/cache"
	"github.com/marmos91/dittodav/pkg/cache/memory"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// countingStore counts writes and can be made to fail.
type countingStore struct {
	cache.Store

	mu      sync.Mutex
	sets    int
	deletes [][]string
	fail    error
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.sets++
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return nil, false, fail
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys []string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, keys)
	s.mu.Unlock()
	return s.Store.DeleteMany(ctx, keys)
}

func (s *countingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// recordingMetrics counts cache events.
type recordingMetrics struct {
	metrics.ClientMetrics

	mu            sync.Mutex
	lookups       map[string]int
	skipped       int
	invalidations int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{ClientMetrics: metrics.NewNoopClientMetrics(), lookups: map[string]int{}}
}

func (m *recordingMetrics) RecordCacheLookup(ns, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups[ns+"/"+result]++
}

func (m *recordingMetrics) RecordCacheWrite(_ string, skipped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skipped {
		m.skipped++
	}
}

func (m *recordingMetrics) RecordInvalidation(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations += n
}

func newTestLayer(t *testing.T) (*cacheLayer, *countingStore) {
	t.Helper()
	store := &countingStore{Store: memory.New(memory.Config{})}
	t.Cleanup(func() { _ = store.Close() })
	return newCacheLayer(store, "test", time.Minute, logger.Discard(), metrics.NewNoopClientMetrics()), store
}

func TestCacheLayer_Keys(t *testing.T) {
	c, _ := newTestLayer(t)

	assert.Equal(t, c.key(nsStat, "a/b"), c.key(nsStat, "/a/b/"), "keys use normalized paths")
	assert.NotEqual(t, c.key(nsStat, "a/b"), c.key(nsList, "a/b"), "namespaces never share keys")
	assert.Regexp(t, `^dittodav\|test\|stat\|[0-9a-f]{16}$`, c.key(nsStat, "a/b"))

	other := newCacheLayer(cache.Noop{}, "other", 0, logger.Discard(), metrics.NewNoopClientMetrics())
	assert.NotEqual(t, c.key(nsStat, "a"), other.key(nsStat, "a"))
	assert.Equal(t, DefaultCacheTTL, other.ttl)
	assert.False(t, other.enabled)
}

func TestCacheLayer_ReadThrough(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLayer(t)

	calls := 0
	produce := func() (Entry, bool, error) {
		calls++
		return Entry{Name: "a.pdf", Path: "a.pdf"}, true, nil
	}

	for i := 0; i < 3; i++ {
		e, found, err := readThrough(ctx, c, nsStat, "a.pdf", produce)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "a.pdf", e.Name)
	}
	assert.Equal(t, 1, calls)
}

func TestCacheLayer_ReadThroughDoesNotCacheFailures(t *testing.T) {
	ctx := context.Background()
	c, store := newTestLayer(t)

	calls := 0
	missing := func() (Entry, bool, error) {
		calls++
		return Entry{}, false, nil
	}
	failing := func() (Entry, bool, error) {
		calls++
		return Entry{}, false, errors.New("boom")
	}

	_, found, _ := readThrough(ctx, c, nsStat, "x", missing)
	assert.False(t, found)
	_, _, err := readThrough(ctx, c, nsStat, "x", failing)
	assert.Error(t, err)
	_, found, _ = readThrough(ctx, c, nsStat, "x", missing)
	assert.False(t, found)

	assert.Equal(t, 3, calls)
	assert.Zero(t, store.setCount())
}

func TestCacheLayer_BackendFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	c, store := newTestLayer(t)
	store.fail = errors.New("backend down")

	calls := 0
	e, found, err := readThrough(ctx, c, nsStat, "a", func() (Entry, bool, error) {
		calls++
		return Entry{Name: "a"}, true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "a", e.Name)
	assert.Equal(t, 1, calls)
}

func TestCacheLayer_PutEntriesSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: memory.New(memory.Config{})}
	rec := newRecordingMetrics()
	c := newCacheLayer(store, "test", time.Minute, logger.Discard(), rec)

	entries := []Entry{
		{Name: "a.pdf", Path: "d/a.pdf", ETag: `"1"`},
		{Name: "b.pdf", Path: "d/b.pdf"},
	}
	c.putEntries(ctx, entries)
	assert.Equal(t, 2, store.setCount())

	// Same records: nothing is rewritten.
	c.putEntries(ctx, entries)
	assert.Equal(t, 2, store.setCount())
	assert.Equal(t, 2, rec.skipped)

	// A new ETag replaces the record even if nothing else changed.
	entries[0].ETag = `"2"`
	c.putEntries(ctx, entries)
	assert.Equal(t, 3, store.setCount())

	var cached Entry
	require.True(t, c.get(ctx, nsStat, "d/a.pdf", &cached))
	assert.Equal(t, `"2"`, cached.ETag)
}

func TestEntry_Unchanged(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := Entry{Name: "a", Path: "a", ETag: `"x"`, Size: 1, Modified: when}

	changedSize := base
	changedSize.Size = 2
	assert.True(t, changedSize.unchanged(base), "matching ETags are authoritative")

	noTag := base
	noTag.ETag = ""
	assert.False(t, changedSize.unchanged(noTag))

	sameInstant := noTag
	sameInstant.Modified = when.In(time.FixedZone("X", 3600))
	assert.True(t, sameInstant.unchanged(noTag))
}

func TestCacheLayer_Invalidate(t *testing.T) {
	ctx := context.Background()
	c, store := newTestLayer(t)

	c.put(ctx, nsStat, "a/b.pdf", Entry{Name: "b.pdf"})
	c.put(ctx, nsList, "a", []string{"a/b.pdf"})
	c.put(ctx, nsStat, "a", Entry{Name: "a", Kind: Directory})

	require.True(t, c.invalidate(ctx, "a/b.pdf"))

	var e Entry
	var children []string
	assert.False(t, c.get(ctx, nsStat, "a/b.pdf", &e))
	assert.False(t, c.get(ctx, nsList, "a", &children), "parent listing is dropped")
	assert.True(t, c.get(ctx, nsStat, "a", &e), "parent metadata survives")

	require.Len(t, store.deletes, 1)
	assert.Len(t, store.deletes[0], 3)
}

func TestCacheLayer_InvalidateTree(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestLayer(t)

	c.put(ctx, nsList, "", []string{"a"})
	c.put(ctx, nsStat, "a", Entry{Name: "a"})
	c.put(ctx, nsList, "a", []string{"a/b", "a/c.pdf"})
	c.put(ctx, nsStat, "a/b", Entry{Name: "b"})
	c.put(ctx, nsStat, "a/c.pdf", Entry{Name: "c.pdf"})
	c.put(ctx, nsList, "a/b", []string{"a/b/d.pdf"})
	c.put(ctx, nsStat, "a/b/d.pdf", Entry{Name: "d.pdf"})
	c.put(ctx, nsStat, "z.pdf", Entry{Name: "z.pdf"})

	require.True(t, c.invalidateTree(ctx, "a"))

	var e Entry
	var children []string
	for _, p := range []string{"a", "a/b", "a/c.pdf", "a/b/d.pdf"} {
		assert.False(t, c.get(ctx, nsStat, p, &e), p)
	}
	assert.False(t, c.get(ctx, nsList, "a", &children))
	assert.False(t, c.get(ctx, nsList, "a/b", &children))
	assert.False(t, c.get(ctx, nsList, "", &children))
	assert.True(t, c.get(ctx, nsStat, "z.pdf", &e), "unrelated entries survive")
}

func TestCacheLayer_Disabled(t *testing.T) {
	ctx := context.Background()
	c := newCacheLayer(nil, "test", 0, logger.Discard(), metrics.NewNoopClientMetrics())

	assert.False(t, c.enabled)
	assert.False(t, c.put(ctx, nsStat, "a", Entry{}))
	assert.True(t, c.invalidate(ctx, "a"))
	assert.True(t, c.invalidateTree(ctx, "a"))

	calls := 0
	for i := 0; i < 2; i++ {
		_, _, _ = readThrough(ctx, c, nsStat, "a", func() (Entry, bool, error) {
			calls++
			return Entry{}, true, nil
		})
	}
	assert.Equal(t, 2, calls)
}
