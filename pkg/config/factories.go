package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/cache"
	badgercache "github.com/marmos91/dittodav/pkg/cache/badger"
	"github.com/marmos91/dittodav/pkg/cache/memory"
	ristrettocache "github.com/marmos91/dittodav/pkg/cache/ristretto"
	"github.com/marmos91/dittodav/pkg/dav"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/transport"
)

// CreateCacheStore creates a cache store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "none": cache.Noop (caching disabled)
//   - "memory": pkg/cache/memory (in-process LRU with TTL)
//   - "badger": pkg/cache/badger (persistent, survives restarts)
//   - "ristretto": pkg/cache/ristretto (in-process, cost-bounded)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Cache configuration
//   - log: Receives backend diagnostics
//
// Returns:
//   - cache.Store: Initialized store; the caller must Close it
//   - error: Configuration or initialization error
func CreateCacheStore(ctx context.Context, cfg *CacheConfig, log logrus.FieldLogger) (cache.Store, error) {
	switch cfg.Type {
	case CacheTypeNone:
		return cache.Noop{}, nil
	case CacheTypeMemory:
		return createMemoryCacheStore(cfg.Memory)
	case CacheTypeBadger:
		return createBadgerCacheStore(ctx, cfg.Badger, log)
	case CacheTypeRistretto:
		return createRistrettoCacheStore(cfg.Ristretto)
	default:
		return nil, fmt.Errorf("unknown cache store type: %q", cfg.Type)
	}
}

func createMemoryCacheStore(options map[string]any) (cache.Store, error) {
	var storeCfg memory.Config
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory cache config: %w", err)
	}
	if storeCfg.MaxEntries < 0 {
		return nil, fmt.Errorf("memory cache: max_entries must not be negative")
	}
	return memory.New(storeCfg), nil
}

func createBadgerCacheStore(ctx context.Context, options map[string]any, log logrus.FieldLogger) (cache.Store, error) {
	// Check context before opening the database
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var storeCfg badgercache.Config
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger cache config: %w", err)
	}

	if !storeCfg.InMemory {
		if storeCfg.DBPath == "" {
			return nil, fmt.Errorf("badger cache: db_path is required")
		}
		if err := os.MkdirAll(storeCfg.DBPath, 0o755); err != nil {
			return nil, fmt.Errorf("badger cache: failed to create %s: %w", storeCfg.DBPath, err)
		}
	}

	store, err := badgercache.New(ctx, storeCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	return store, nil
}

func createRistrettoCacheStore(options map[string]any) (cache.Store, error) {
	var storeCfg ristrettocache.Config
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode ristretto cache config: %w", err)
	}
	store, err := ristrettocache.New(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return store, nil
}

// decodeOptions decodes a type-specific section. Values that arrive as
// strings (from environment variables) are converted to the target type.
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// defaultBadgerPath places the persistent cache in the user cache directory.
func defaultBadgerPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dittodav", "badger")
}

// CreateTransport creates the HTTP transport for cfg.
func CreateTransport(cfg *transport.Config, log logrus.FieldLogger, m metrics.ClientMetrics) (*transport.HTTPTransport, error) {
	tr, err := transport.NewHTTPTransport(*cfg,
		transport.WithLogger(log),
		transport.WithMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return tr, nil
}

// ClientResult holds a ready client and the resources backing it.
type ClientResult struct {
	Client    *dav.Client
	Transport *transport.HTTPTransport
	Cache     cache.Store
	Logger    *logrus.Logger
	Metrics   *MetricsResult
}

// Close flushes metrics and releases the cache and transport.
func (r *ClientResult) Close() error {
	var err error
	if r.Metrics != nil {
		err = multierr.Append(err, r.Metrics.Flush())
	}
	if r.Cache != nil {
		if cerr := r.Cache.Close(); cerr != nil && !errors.Is(cerr, cache.ErrClosed) {
			err = multierr.Append(err, fmt.Errorf("failed to close cache: %w", cerr))
		}
	}
	if r.Transport != nil {
		err = multierr.Append(err, r.Transport.Close())
	}
	return err
}

// InitializeClient wires a dav.Client from a loaded configuration: logger,
// metrics, cache store and transport.
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Validated configuration
//
// Returns:
//   - *ClientResult: The client and its resources; Close it when done
//   - error: If any component fails to initialize
func InitializeClient(ctx context.Context, cfg *Config) (*ClientResult, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	m := InitializeMetrics(cfg)

	store, err := CreateCacheStore(ctx, &cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	tr, err := CreateTransport(&cfg.Server, log, m.ClientMetrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	opts := []dav.Option{
		dav.WithLogger(log),
		dav.WithMetrics(m.ClientMetrics),
		dav.WithCache(store, cfg.Cache.TTL),
	}
	if cfg.Cache.Prefix != "" {
		opts = append(opts, dav.WithCacheNamespace(cfg.Cache.Prefix))
	}

	log.WithFields(logrus.Fields{
		"url":   tr.BaseURL(),
		"cache": cfg.Cache.Type,
		"ttl":   cfg.Cache.TTL,
	}).Debug("Client initialized")

	return &ClientResult{
		Client:    dav.NewClient(tr, opts...),
		Transport: tr,
		Cache:     store,
		Logger:    log,
		Metrics:   m,
	}, nil
}
