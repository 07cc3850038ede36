package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/cache"
	"github.com/marmos91/dittodav/pkg/cache/memory"
)

type failingStore struct {
	cache.Noop
	sets int
}

func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	f.sets++
	return errors.New("disk full")
}

func TestBeginBatch_BuffersUntilCommit(t *testing.T) {
	store := memory.New(memory.Config{})
	ctx := context.Background()

	batch := cache.BeginBatch(store)
	require.NoError(t, batch.Set("a", []byte("1"), time.Hour))

	_, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "write must not be visible before commit")

	require.NoError(t, batch.Commit(ctx))

	got, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)
}

func TestBeginBatch_CombinesErrors(t *testing.T) {
	store := &failingStore{}

	batch := cache.BeginBatch(store)
	require.NoError(t, batch.Set("a", nil, 0))
	require.NoError(t, batch.Set("b", nil, 0))

	err := batch.Commit(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, store.sets, "every write is attempted")
}

func TestIsNoop(t *testing.T) {
	assert.True(t, cache.IsNoop(nil))
	assert.True(t, cache.IsNoop(cache.Noop{}))
	assert.False(t, cache.IsNoop(memory.New(memory.Config{})))
}
