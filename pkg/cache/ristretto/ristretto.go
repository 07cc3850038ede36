// Package ristretto provides a cost-bounded in-process cache.Store backed by
// dgraph-io/ristretto.
//
// Unlike the memory backend, admission is governed by TinyLFU: under memory
// pressure a write may be rejected in favour of hotter keys. A rejected write
// is indistinguishable from an immediate eviction, which the metadata cache
// already tolerates as a miss.
package ristretto

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/marmos91/dittodav/pkg/cache"
)

// Config configures a ristretto Store.
type Config struct {
	// MaxCost is the total number of value bytes the cache may hold.
	// Default: 64MB
	MaxCost int64 `mapstructure:"max_cost" yaml:"max_cost"`

	// NumCounters is the number of keys tracked for admission frequency,
	// ideally ~10x the expected number of entries.
	// Default: 1e6
	NumCounters int64 `mapstructure:"num_counters" yaml:"num_counters"`
}

// Store wraps a ristretto cache keyed by string.
//
// Thread Safety:
// ristretto is internally synchronized. Writes are buffered; Set and Delete
// wait for the buffer to drain so that a following Get observes them.
type Store struct {
	c      *ristretto.Cache[string, []byte]
	closed atomic.Bool
}

var _ cache.Store = (*Store)(nil)

// New creates a Store.
func New(cfg Config) (*Store, error) {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = 64 << 20
	}
	if cfg.NumCounters <= 0 {
		cfg.NumCounters = 1_000_000
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, cache.ErrClosed
	}
	value, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	// A rejected write is not an error; the next read is a miss.
	s.c.SetWithTTL(key, stored, int64(len(stored))+1, ttl)
	s.c.Wait()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, []string{key})
}

func (s *Store) DeleteMany(_ context.Context, keys []string) error {
	if s.closed.Load() {
		return cache.ErrClosed
	}
	for _, key := range keys {
		s.c.Del(key)
	}
	s.c.Wait()
	return nil
}

func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.c.Close()
	}
	return nil
}
