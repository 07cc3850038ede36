// Package badger provides a persistent cache.Store backed by BadgerDB.
//
// Entries are written with Badger's native TTL, so expired keys disappear
// from reads without a sweeper and are reclaimed during compaction. Batched
// writes use a WriteBatch to amortise transaction overhead when a directory
// listing caches many children at once.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/sirupsen/logrus"

	"github.com/marmos91/dittodav/pkg/cache"
)

// Config configures a Badger-backed Store.
type Config struct {
	// DBPath is the directory where BadgerDB stores its files.
	// Required unless InMemory is set.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// InMemory keeps all data in RAM. Nothing is persisted across restarts.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb" yaml:"block_cache_size_mb"`
}

// Store implements cache.Store and cache.Batcher on top of BadgerDB.
//
// Thread Safety:
// BadgerDB handles concurrency internally through MVCC transactions, so Store
// holds no locks of its own.
type Store struct {
	db *badger.DB
}

var (
	_ cache.Store   = (*Store)(nil)
	_ cache.Batcher = (*Store)(nil)
)

// New opens (or creates) a Badger database for caching.
//
// Parameters:
//   - ctx: Checked before the database is opened
//   - cfg: Storage location and sizing
//   - log: Receives Badger's internal warnings and errors; nil silences them
//
// Returns:
//   - *Store: Ready for use
//   - error: If the configuration is incomplete or the database cannot be opened
func New(ctx context.Context, cfg Config, log logrus.FieldLogger) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.DBPath == "" {
			return nil, errors.New("badger cache: db_path is required")
		}
		opts = badger.DefaultOptions(cfg.DBPath)
	}

	// Cache values are small JSON records.
	opts = opts.WithCompression(options.None)

	blockCacheMB := cfg.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	if log != nil {
		opts = opts.WithLogger(log).WithLoggingLevel(badger.WARNING)
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, false, nil
	case errors.Is(err, badger.ErrDBClosed):
		return nil, false, cache.ErrClosed
	case err != nil:
		return nil, false, fmt.Errorf("badger cache get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
	return wrapErr("set", err)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, []string{key})
}

// DeleteMany removes all keys in a single transaction.
func (s *Store) DeleteMany(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
	return wrapErr("delete", err)
}

// NewBatch starts a WriteBatch. Writes become visible on Commit.
func (s *Store) NewBatch() cache.Batch {
	return &batch{wb: s.db.NewWriteBatch()}
}

func (s *Store) Close() error {
	return s.db.Close()
}

type batch struct {
	wb  *badger.WriteBatch
	err error
}

func (b *batch) Set(key string, value []byte, ttl time.Duration) error {
	if b.err != nil {
		return b.err
	}
	if err := b.wb.SetEntry(newEntry(key, value, ttl)); err != nil {
		b.err = wrapErr("batch set", err)
	}
	return b.err
}

func (b *batch) Commit(ctx context.Context) error {
	if b.err != nil {
		b.wb.Cancel()
		return b.err
	}
	if err := ctx.Err(); err != nil {
		b.wb.Cancel()
		return err
	}
	return wrapErr("batch commit", b.wb.Flush())
}

func newEntry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}

func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrDBClosed):
		return cache.ErrClosed
	default:
		return fmt.Errorf("badger cache %s: %w", op, err)
	}
}
