// Package memory provides an in-process LRU cache.Store with per-entry TTL.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/marmos91/dittodav/pkg/cache"
)

// DefaultMaxEntries bounds the cache when no limit is configured.
const DefaultMaxEntries = 10000

// Config configures a memory Store.
type Config struct {
	// MaxEntries limits the cache size (LRU eviction)
	// 0 uses DefaultMaxEntries
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

// Store is an LRU cache with per-entry expiry.
//
// Cache Strategy:
//   - LRU eviction when the cache is full
//   - Expired entries are dropped lazily on access
//   - Thread-safe for concurrent access
//
// Thread Safety:
// All operations are protected by a single mutex. Get mutates the LRU order,
// so reads take the write lock as well.
type Store struct {
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List
	closed  bool

	hits   uint64
	misses uint64
}

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	lruNode   *list.Element
}

var _ cache.Store = (*Store)(nil)

// New creates an empty Store.
func New(cfg Config) *Store {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	return &Store{
		maxEntries: cfg.MaxEntries,
		now:        time.Now,
		entries:    make(map[string]*entry),
		lruList:    list.New(),
	}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, cache.ErrClosed
	}

	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.removeLocked(key, e)
		s.misses++
		return nil, false, nil
	}

	s.lruList.MoveToFront(e.lruNode)
	s.hits++
	return clone(e.value), true, nil
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cache.ErrClosed
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	if existing, ok := s.entries[key]; ok {
		existing.value = clone(value)
		existing.expiresAt = expiresAt
		s.lruList.MoveToFront(existing.lruNode)
		return nil
	}

	if len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	e := &entry{value: clone(value), expiresAt: expiresAt}
	e.lruNode = s.lruList.PushFront(key)
	s.entries[key] = e
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, []string{key})
}

func (s *Store) DeleteMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return cache.ErrClosed
	}

	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			s.removeLocked(key, e)
		}
	}
	return nil
}

// Close drops every entry. Further operations return cache.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry)
	s.lruList = list.New()
	s.closed = true
	return nil
}

// Stats returns hit/miss counters and the current number of entries.
func (s *Store) Stats() (hits, misses uint64, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, len(s.entries)
}

// Must be called with s.mu held.
func (s *Store) evictOldestLocked() {
	oldest := s.lruList.Back()
	if oldest == nil {
		return
	}
	key := oldest.Value.(string)
	s.removeLocked(key, s.entries[key])
}

// Must be called with s.mu held.
func (s *Store) removeLocked(key string, e *entry) {
	s.lruList.Remove(e.lruNode)
	delete(s.entries, key)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
