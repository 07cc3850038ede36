package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/cache"
	cachetest "github.com/marmos91/dittodav/pkg/cache/testing"
)

func TestMemoryStore(t *testing.T) {
	suite := &cachetest.StoreTestSuite{
		NewStore: func(t *testing.T) cache.Store {
			return New(Config{})
		},
	}
	suite.Run(t)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	store := New(Config{MaxEntries: 2})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	// Touch "a" so "b" becomes the oldest.
	cachetest.MustGet(t, store, "a", []byte("1"))

	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))

	cachetest.MustMiss(t, store, "b")
	cachetest.MustGet(t, store, "a", []byte("1"))
	cachetest.MustGet(t, store, "c", []byte("3"))
}

func TestMemoryStore_ExpiryUsesClock(t *testing.T) {
	store := New(Config{})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	cachetest.MustGet(t, store, "k", []byte("v"))

	now = now.Add(time.Minute)
	cachetest.MustMiss(t, store, "k")

	_, _, size := store.Stats()
	assert.Equal(t, 0, size, "expired entry should be dropped on access")
}

func TestMemoryStore_Stats(t *testing.T) {
	store := New(Config{})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	cachetest.MustGet(t, store, "k", []byte("v"))
	cachetest.MustMiss(t, store, "other")

	hits, misses, size := store.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 1, size)
}
