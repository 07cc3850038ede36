// Package cache defines the key/value storage used by the DittoDAV metadata
// cache.
//
// Backends live in sub-packages (memory, badger, ristretto). Values are opaque
// byte slices; encoding is the caller's concern. Every backend must honour
// per-entry expiry and treat deletion of a missing key as success.
package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("cache: store closed")

// Store is a key/value store with per-entry expiry.
//
// Thread safety:
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key.
	//
	// Returns:
	//   - value, true, nil on a hit
	//   - nil, false, nil on a miss or an expired entry
	//   - nil, false, err when the backend failed
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes every key in keys as one operation where the
	// backend supports it.
	DeleteMany(ctx context.Context, keys []string) error

	// Close releases backend resources.
	Close() error
}

// Batcher is implemented by stores that can defer several writes into a
// single commit.
type Batcher interface {
	NewBatch() Batch
}

// Batch collects writes until Commit. A batch must not be reused after
// Commit.
type Batch interface {
	Set(key string, value []byte, ttl time.Duration) error
	Commit(ctx context.Context) error
}

// BeginBatch returns a native batch when store implements Batcher, and a
// buffering batch that replays writes through Set otherwise.
func BeginBatch(store Store) Batch {
	if b, ok := store.(Batcher); ok {
		return b.NewBatch()
	}
	return &bufferedBatch{store: store}
}

type pendingWrite struct {
	key   string
	value []byte
	ttl   time.Duration
}

type bufferedBatch struct {
	store   Store
	pending []pendingWrite
}

func (b *bufferedBatch) Set(key string, value []byte, ttl time.Duration) error {
	b.pending = append(b.pending, pendingWrite{key: key, value: value, ttl: ttl})
	return nil
}

// Commit writes every pending entry, continuing past failures and returning
// all of them combined.
func (b *bufferedBatch) Commit(ctx context.Context) error {
	var errs error
	for _, w := range b.pending {
		errs = multierr.Append(errs, b.store.Set(ctx, w.key, w.value, w.ttl))
	}
	b.pending = nil
	return errs
}
