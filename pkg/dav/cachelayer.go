package dav

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/marmos91/dittodav/pkg/cache"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// DefaultCacheTTL is how long metadata stays cached when no TTL is set.
const DefaultCacheTTL = 24 * time.Hour

// Cache namespaces. Point lookups and listings of the same path never share
// a key.
const (
	nsStat = "stat"
	nsList = "list"
)

const keyPrefix = "dittodav"

// cacheLayer wraps a cache.Store with key derivation, JSON encoding and
// logging. Backend failures are logged and never surface to callers.
type cacheLayer struct {
	store   cache.Store
	enabled bool
	prefix  string
	ttl     time.Duration
	log     logrus.FieldLogger
	metrics metrics.ClientMetrics
}

func newCacheLayer(store cache.Store, namespace string, ttl time.Duration, log logrus.FieldLogger, m metrics.ClientMetrics) *cacheLayer {
	if store == nil {
		store = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &cacheLayer{
		store:   store,
		enabled: !cache.IsNoop(store),
		prefix:  keyPrefix + "|" + namespace,
		ttl:     ttl,
		log:     log,
		metrics: m,
	}
}

// defaultNamespace derives a stable namespace from the server root so that
// clients of different servers can share one store.
func defaultNamespace(baseURL string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(baseURL))
}

// key returns prefix|ns|hash(path) for a normalized path.
func (c *cacheLayer) key(ns, p string) string {
	return fmt.Sprintf("%s|%s|%016x", c.prefix, ns, xxhash.Sum64String(normalizePath(p)))
}

// readThrough returns the cached value for (ns, path), or calls produce and
// caches its result. Results produce reports as not found, and errors, are
// never cached.
func readThrough[T any](ctx context.Context, c *cacheLayer, ns, p string, produce func() (T, bool, error)) (T, bool, error) {
	if !c.enabled {
		return produce()
	}

	var cached T
	if c.get(ctx, ns, p, &cached) {
		return cached, true, nil
	}

	value, found, err := produce()
	if err != nil || !found {
		return value, found, err
	}

	c.put(ctx, ns, p, value)
	return value, true, nil
}

// get decodes the cached value into dst and reports whether there was one.
func (c *cacheLayer) get(ctx context.Context, ns, p string, dst any) bool {
	if !c.enabled {
		return false
	}

	log := c.log.WithFields(logrus.Fields{"path": p, "namespace": ns})

	data, ok, err := c.store.Get(ctx, c.key(ns, p))
	if err != nil {
		log.WithError(err).Warn("Failed to read from cache")
		c.metrics.RecordCacheLookup(ns, metrics.CacheError)
		return false
	}
	if !ok {
		c.metrics.RecordCacheLookup(ns, metrics.CacheMiss)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		log.WithError(err).Warn("Discarding undecodable cache entry")
		c.metrics.RecordCacheLookup(ns, metrics.CacheError)
		return false
	}

	log.Debug("Result taken from cache")
	c.metrics.RecordCacheLookup(ns, metrics.CacheHit)
	return true
}

// put stores value under (ns, path) and reports whether it was written.
func (c *cacheLayer) put(ctx context.Context, ns, p string, value any) bool {
	if !c.enabled {
		return false
	}

	log := c.log.WithFields(logrus.Fields{"path": p, "namespace": ns})

	data, err := json.Marshal(value)
	if err != nil {
		log.WithError(err).Warn("Failed to encode cache entry")
		return false
	}

	if err := c.store.Set(ctx, c.key(ns, p), data, c.ttl); err != nil {
		log.WithError(err).Warn("Failed to save to cache")
		return false
	}

	log.Debug("Result saved to cache")
	c.metrics.RecordCacheWrite(ns, false)
	return true
}

// putEntries caches each entry as a point lookup in one batch, skipping
// entries whose cached record is unchanged.
func (c *cacheLayer) putEntries(ctx context.Context, entries []Entry) {
	if !c.enabled || len(entries) == 0 {
		return
	}

	batch := cache.BeginBatch(c.store)
	written := 0
	for _, e := range entries {
		var cached Entry
		if c.get(ctx, nsStat, e.Path, &cached) && e.unchanged(cached) {
			c.metrics.RecordCacheWrite(nsStat, true)
			continue
		}

		data, err := json.Marshal(e)
		if err != nil {
			c.log.WithError(err).WithField("path", e.Path).Warn("Failed to encode cache entry")
			continue
		}
		if err := batch.Set(c.key(nsStat, e.Path), data, c.ttl); err != nil {
			c.log.WithError(err).WithField("path", e.Path).Warn("Failed to stage cache entry")
			continue
		}
		c.metrics.RecordCacheWrite(nsStat, false)
		written++
	}

	if written == 0 {
		return
	}
	if err := batch.Commit(ctx); err != nil {
		c.log.WithError(err).WithField("entries", written).Warn("Failed to save listing entries to cache")
		return
	}
	c.log.WithField("entries", written).Debug("Listing entries saved to cache")
}

// invalidate drops the point and listing keys of path and the listing key
// of its parent.
func (c *cacheLayer) invalidate(ctx context.Context, p string) bool {
	return c.deleteKeys(ctx, p, c.affectedKeys(p))
}

// invalidateTree is invalidate plus the keys of every descendant reachable
// through cached listings.
func (c *cacheLayer) invalidateTree(ctx context.Context, p string) bool {
	if !c.enabled {
		return true
	}

	keys := c.affectedKeys(p)
	visited := map[string]bool{normalizePath(p): true}
	queue := []string{normalizePath(p)}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		var children []string
		if !c.get(ctx, nsList, dir, &children) {
			continue
		}
		for _, child := range children {
			if visited[child] {
				continue
			}
			visited[child] = true
			keys = append(keys, c.key(nsStat, child), c.key(nsList, child))
			queue = append(queue, child)
		}
	}

	return c.deleteKeys(ctx, p, keys)
}

func (c *cacheLayer) affectedKeys(p string) []string {
	p = normalizePath(p)
	keys := []string{c.key(nsStat, p), c.key(nsList, p)}
	if parent := parentPath(p); parent != p {
		keys = append(keys, c.key(nsList, parent))
	}
	return keys
}

func (c *cacheLayer) deleteKeys(ctx context.Context, p string, keys []string) bool {
	if !c.enabled {
		return true
	}

	if err := c.store.DeleteMany(ctx, keys); err != nil {
		c.log.WithError(err).WithField("path", p).Warn("Failed to invalidate cache")
		return false
	}

	c.log.WithFields(logrus.Fields{"path": p, "keys": len(keys)}).Debug("Cache invalidated")
	c.metrics.RecordInvalidation(len(keys))
	return true
}
