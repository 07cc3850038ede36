// Package testing provides a conformance suite for cache.Store implementations.
package testing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/cache"
)

// StoreTestSuite tests the cache.Store contract, not implementation details,
// so the same cases run against every backend.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &cachetest.StoreTestSuite{
//	        NewStore: func(t *testing.T) cache.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) cache.Store

	// SkipExpiry skips the TTL tests, which sleep for over a second.
	SkipExpiry bool
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Get_Missing", suite.testGetMissing)
	t.Run("SetThenGet", suite.testSetThenGet)
	t.Run("Set_Overwrites", suite.testSetOverwrites)
	t.Run("Get_ReturnsCopy", suite.testGetReturnsCopy)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("DeleteMany", suite.testDeleteMany)
	t.Run("Batch", suite.testBatch)
	t.Run("Expiry", suite.testExpiry)
	t.Run("Close", suite.testClose)
}

func (suite *StoreTestSuite) newStore(t *testing.T) cache.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func (suite *StoreTestSuite) testGetMissing(t *testing.T) {
	store := suite.newStore(t)

	value, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func (suite *StoreTestSuite) testSetThenGet(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))

	MustGet(t, store, "k", []byte("v"))
}

func (suite *StoreTestSuite) testSetOverwrites(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("first"), time.Hour))
	require.NoError(t, store.Set(ctx, "k", []byte("second"), time.Hour))

	MustGet(t, store, "k", []byte("second"))
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	original := []byte("value")
	require.NoError(t, store.Set(ctx, "k", original, time.Hour))
	original[0] = 'X'

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	got[1] = 'Y'

	MustGet(t, store, "k", []byte("value"))
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, store.Delete(ctx, "k"))

	MustMiss(t, store, "k")
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.newStore(t)
	assert.NoError(t, store.Delete(context.Background(), "never-set"))
}

func (suite *StoreTestSuite) testDeleteMany(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour))
	}

	require.NoError(t, store.DeleteMany(ctx, []string{"k0", "k2", "k4", "absent"}))

	MustMiss(t, store, "k0")
	MustMiss(t, store, "k2")
	MustMiss(t, store, "k4")
	MustGet(t, store, "k1", []byte("v"))
	MustGet(t, store, "k3", []byte("v"))
}

func (suite *StoreTestSuite) testBatch(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	batch := cache.BeginBatch(store)
	for i := 0; i < 10; i++ {
		require.NoError(t, batch.Set(fmt.Sprintf("b%d", i), []byte(fmt.Sprintf("v%d", i)), time.Hour))
	}
	require.NoError(t, batch.Commit(ctx))

	for i := 0; i < 10; i++ {
		MustGet(t, store, fmt.Sprintf("b%d", i), []byte(fmt.Sprintf("v%d", i)))
	}
}

func (suite *StoreTestSuite) testExpiry(t *testing.T) {
	if suite.SkipExpiry || testing.Short() {
		t.Skip("skipping expiry test")
	}

	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

	time.Sleep(2100 * time.Millisecond)

	MustMiss(t, store, "short")
	MustGet(t, store, "forever", []byte("v"))
}

func (suite *StoreTestSuite) testClose(t *testing.T) {
	store := suite.NewStore(t)
	require.NoError(t, store.Close())

	_, _, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
}

// MustGet asserts that key holds want.
func MustGet(t *testing.T, store cache.Store, key string, want []byte) {
	t.Helper()
	got, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok, "expected hit for %q", key)
	assert.Equal(t, want, got)
}

// MustMiss asserts that key is absent.
func MustMiss(t *testing.T, store cache.Store, key string) {
	t.Helper()
	_, ok, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "expected miss for %q", key)
}
