// Package dav implements a WebDAV client with a filesystem-like API.
//
// The client turns PROPFIND multistatus responses into typed Entry records,
// orders and paginates directory listings, creates directory paths one
// component at a time, and keeps a read-through / write-invalidate metadata
// cache consistent with every mutation it performs.
//
// Basic usage:
//
//	tr, _ := transport.NewHTTPTransport(transport.Config{URL: "https://dav.example.com/webdav/"})
//	client := dav.NewClient(tr, dav.WithCache(memory.New(memory.Config{}), time.Hour))
//
//	entries, err := client.ListDirectory(ctx, "docs", dav.DefaultListOptions())
//
// Thread safety:
// A Client holds no mutable state of its own and is safe for concurrent use
// when its transport and cache store are.
package dav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/cache"
	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/query"
	"github.com/marmos91/dittodav/pkg/transport"
)

// Status codes that indicate success for each mutation.
const (
	statusMkcolCreated = http.StatusCreated
	statusPutCreated   = http.StatusCreated
)

// Client is a WebDAV path client.
type Client struct {
	transport  transport.Transport
	translator *Translator
	cache      *cacheLayer
	log        logrus.FieldLogger
}

type options struct {
	store     cache.Store
	ttl       time.Duration
	namespace string
	basePath  *string
	log       logrus.FieldLogger
	metrics   metrics.ClientMetrics
}

// Option configures a Client.
type Option func(*options)

// WithCache enables metadata caching in store with the given TTL. A ttl <= 0
// uses DefaultCacheTTL.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(o *options) {
		o.store = store
		o.ttl = ttl
	}
}

// WithCacheNamespace sets the cache key namespace. By default it is derived
// from the transport's base URL.
func WithCacheNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithBasePath sets the path prefix stripped from hrefs. By default it is
// taken from the transport when it exposes BasePath.
func WithBasePath(basePath string) Option {
	return func(o *options) {
		o.basePath = &basePath
	}
}

// WithLogger sets the logger. Without one the client logs nothing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMetrics records cache activity in m.
func WithMetrics(m metrics.ClientMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewClient creates a Client over t.
func NewClient(t transport.Transport, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.log == nil {
		o.log = logger.Discard()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNoopClientMetrics()
	}

	basePath := ""
	if o.basePath != nil {
		basePath = *o.basePath
	} else if bp, ok := t.(interface{ BasePath() string }); ok {
		basePath = bp.BasePath()
	}

	namespace := o.namespace
	if namespace == "" {
		if bu, ok := t.(interface{ BaseURL() string }); ok {
			namespace = defaultNamespace(bu.BaseURL())
		} else {
			namespace = defaultNamespace(basePath)
		}
	}

	return &Client{
		transport:  t,
		translator: NewTranslator(basePath),
		cache:      newCacheLayer(o.store, namespace, o.ttl, o.log, o.metrics),
		log:        o.log,
	}
}

// Stat returns the metadata of path.
//
// The result is read through the cache. Transport and translation failures
// are logged and reported as not found; not-found results are never cached.
//
// Returns:
//   - Entry, true if the path exists
//   - zero Entry, false otherwise
func (c *Client) Stat(ctx context.Context, p string) (Entry, bool) {
	p = normalizePath(p)
	entry, found, err := c.lookup(ctx, p)
	if err != nil {
		c.logFailure(err, p, "Failed to stat path")
		return Entry{}, false
	}
	return entry, found
}

// Exists reports whether path exists.
func (c *Client) Exists(ctx context.Context, p string) bool {
	_, found := c.Stat(ctx, p)
	return found
}

// lookup is Stat for the mutations: a 404 or an empty multistatus is
// reported as not found, every other failure is returned.
func (c *Client) lookup(ctx context.Context, p string) (Entry, bool, error) {
	return readThrough(ctx, c.cache, nsStat, p, func() (Entry, bool, error) {
		return c.fetchStat(ctx, p)
	})
}

func (c *Client) fetchStat(ctx context.Context, p string) (Entry, bool, error) {
	responses, err := c.propfind(ctx, p)
	if errors.Is(err, ErrNotFound) {
		c.log.WithField("path", p).Debug("Path not found")
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	first, ok := responses.First()
	if !ok {
		return Entry{}, false, nil
	}

	entry, err := c.translator.Translate(first)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// ListDirectory returns the children of path ordered and paginated by opts.
//
// Directories always precede files. The directory itself is excluded. On a
// cache miss every child is cached as a point lookup, skipping children whose
// cached record is unchanged, and the listing is cached as well.
//
// Errors:
//   - *InvalidSortOrderError, *InvalidSelectorError for bad options
//   - ErrInvalidPageSize for a negative page size with a concrete page
//   - *TransportError if the PROPFIND failed
//   - *TranslationError if any member could not be translated
func (c *Client) ListDirectory(ctx context.Context, p string, opts ListOptions) ([]Entry, error) {
	opts = opts.withDefaults()
	if opts.Order != Ascending && opts.Order != Descending {
		return nil, &InvalidSortOrderError{Order: opts.Order}
	}
	if _, err := comparator(opts.SortBy); err != nil {
		return nil, err
	}

	p = normalizePath(p)
	children, err := c.children(ctx, p)
	if err != nil {
		return nil, err
	}

	ordered, err := Order(children, opts.SortBy, opts.Order)
	if err != nil {
		return nil, err
	}
	return Paginate(ordered, opts.Page, opts.PageSize)
}

func (c *Client) children(ctx context.Context, p string) ([]Entry, error) {
	if cached, ok := c.cachedChildren(ctx, p); ok {
		return cached, nil
	}

	responses, err := c.propfind(ctx, p)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, responses.Count())
	err = responses.Each(func(_ int, node query.Node) error {
		href, err := c.translator.Value(node, FieldHref)
		if err != nil {
			return err
		}
		hrefPath, err := c.translator.HrefPath(href)
		if err != nil {
			return &TranslationError{Field: FieldHref, Value: href, Err: err}
		}
		if hrefPath == p {
			return nil
		}

		entry, err := c.translator.Translate(node)
		if err != nil {
			return err
		}
		if parentPath(entry.Path) != p {
			entry.Path = path.Join(p, entry.Name)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.putEntries(ctx, entries)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	c.cache.put(ctx, nsList, p, paths)

	return entries, nil
}

// cachedChildren resolves a cached listing through the point cache. Any
// missing child makes the whole listing a miss.
func (c *Client) cachedChildren(ctx context.Context, p string) ([]Entry, bool) {
	var paths []string
	if !c.cache.get(ctx, nsList, p, &paths) {
		return nil, false
	}

	entries := make([]Entry, 0, len(paths))
	for _, child := range paths {
		var e Entry
		if !c.cache.get(ctx, nsStat, child, &e) {
			return nil, false
		}
		entries = append(entries, e)
	}
	return entries, true
}

// CreateDirectory ensures path exists as a directory, creating each missing
// component from the root down.
//
// Returns true when the directory exists afterwards. Fails with
// *DirectoryCreationError naming the first component that could not be
// checked or created, or that exists as a file.
//
// A 409 Conflict on MKCOL means a component cached as existing was removed
// by someone else. The cached chain is then dropped and creation retried
// once.
func (c *Client) CreateDirectory(ctx context.Context, p string) (bool, error) {
	p = normalizePath(p)
	if p == "" || p == "." {
		return true, nil
	}

	err := c.createDirectory(ctx, p)
	if isConflict(err) {
		c.log.WithField("path", p).Debug("Cached parent is gone, retrying directory creation")
		c.invalidateChain(ctx, p)
		err = c.createDirectory(ctx, p)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) createDirectory(ctx context.Context, p string) error {
	entry, found, err := c.lookup(ctx, p)
	if err != nil {
		return &DirectoryCreationError{Path: p, Err: err}
	}
	if found {
		if entry.IsDir() {
			return nil
		}
		return &DirectoryCreationError{Path: p, Err: ErrNotADirectory}
	}

	prefix := ""
	created := false
	for _, part := range strings.Split(p, "/") {
		prefix = path.Join(prefix, part)

		// Below a directory created here nothing can exist yet.
		if !created {
			entry, found, err := c.lookup(ctx, prefix)
			if err != nil {
				return &DirectoryCreationError{Path: prefix, Err: err}
			}
			if found {
				if !entry.IsDir() {
					return &DirectoryCreationError{Path: prefix, Err: ErrNotADirectory}
				}
				continue
			}
		}

		if err := c.mkcol(ctx, prefix); err != nil {
			c.logFailure(err, prefix, "Failed to create directory")
			return &DirectoryCreationError{Path: prefix, Err: err}
		}
		created = true
		c.cache.invalidate(ctx, prefix)
		c.log.WithField("path", prefix).Debug("Directory created")
	}

	return nil
}

// invalidateChain drops the cached keys of p and of every ancestor.
func (c *Client) invalidateChain(ctx context.Context, p string) {
	for p = normalizePath(p); p != ""; p = parentPath(p) {
		c.cache.invalidate(ctx, p)
	}
}

func isConflict(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr) && terr.StatusCode() == http.StatusConflict
}

func (c *Client) mkcol(ctx context.Context, p string) error {
	resp, err := c.transport.Do(ctx, transport.MethodMkcol, p, transport.RequestOptions{})
	if err != nil {
		return &TransportError{Op: transport.MethodMkcol, Path: p, Err: err}
	}
	if resp.StatusCode != statusMkcolCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// WriteFile stores body at path, creating parent directories first.
//
// Returns true only when the server answered 201 Created; overwriting an
// existing file typically yields 204 and returns false. Any 2xx response
// invalidates the cached metadata of path and of its parent listing. A 409
// Conflict drops the cached parent chain and retries once.
func (c *Client) WriteFile(ctx context.Context, p string, body []byte) (bool, error) {
	p = normalizePath(p)
	if p == "" {
		return false, ErrRootPath
	}

	parent := parentPath(p)
	if _, err := c.CreateDirectory(ctx, parent); err != nil {
		return false, err
	}

	resp, err := c.put(ctx, p, body)
	if isConflict(err) {
		c.log.WithField("path", p).Debug("Cached parent is gone, retrying write")
		c.invalidateChain(ctx, parent)
		if _, err := c.CreateDirectory(ctx, parent); err != nil {
			return false, err
		}
		resp, err = c.put(ctx, p, body)
	}
	if err != nil {
		c.logFailure(err, p, "Failed to write file")
		return false, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.cache.invalidate(ctx, p)
	}

	c.log.WithFields(logrus.Fields{
		"path":   p,
		"status": resp.StatusCode,
		"bytes":  len(body),
	}).Debug("File written")

	return resp.StatusCode == statusPutCreated, nil
}

func (c *Client) put(ctx context.Context, p string, body []byte) (*transport.Response, error) {
	header := http.Header{}
	if ct := contentTypeFor(path.Base(p), ""); ct != DirectoryContentType {
		header.Set("Content-Type", ct)
	}

	resp, err := c.transport.Do(ctx, http.MethodPut, p, transport.RequestOptions{
		Header: header,
		Body:   body,
	})
	if err != nil {
		return nil, &TransportError{Op: http.MethodPut, Path: p, Err: err}
	}
	return resp, nil
}

// Delete removes path. A path that does not exist counts as deleted and
// sends no request; so does a DELETE answered with 404.
//
// Returns true when the server answered 200 or 204. On success the cached
// metadata of path, its parent listing and, for directories, every cached
// descendant is invalidated. Failures to check existence are returned, not
// taken as absence.
func (c *Client) Delete(ctx context.Context, p string) (bool, error) {
	p = normalizePath(p)
	if p == "" {
		return false, ErrRootPath
	}

	entry, found, err := c.lookup(ctx, p)
	if err != nil {
		c.logFailure(err, p, "Failed to check path before delete")
		return false, err
	}
	if !found {
		return true, nil
	}

	resp, err := c.transport.Do(ctx, http.MethodDelete, p, transport.RequestOptions{})
	if err != nil {
		err = &TransportError{Op: http.MethodDelete, Path: p, Err: err}
		if !errors.Is(err, ErrNotFound) {
			c.logFailure(err, p, "Failed to delete path")
			return false, err
		}
		c.log.WithField("path", p).Debug("Path already gone on the server")
	} else if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		c.log.WithFields(logrus.Fields{"path": p, "status": resp.StatusCode}).Warn("Unexpected delete status")
		return false, nil
	}

	if entry.IsDir() {
		c.cache.invalidateTree(ctx, p)
	} else {
		c.cache.invalidate(ctx, p)
	}
	return true, nil
}

func (c *Client) propfind(ctx context.Context, p string) (query.Nodes, error) {
	resp, err := c.transport.Do(ctx, transport.MethodPropfind, p, transport.RequestOptions{
		Header: http.Header{
			"Depth":        []string{"1"},
			"Content-Type": []string{"application/xml; charset=utf-8"},
		},
		Body: []byte(propfindBody),
	})
	if err != nil {
		return nil, &TransportError{Op: transport.MethodPropfind, Path: p, Err: err}
	}

	doc, err := query.Parse(resp.Body)
	if err != nil {
		return nil, &TranslationError{Err: err}
	}

	responses, err := doc.Select(responseSelector)
	if err != nil {
		return nil, &TranslationError{Err: err}
	}
	return responses, nil
}

// logFailure logs err for path. Not-found responses are expected during
// existence checks and only logged at debug level.
func (c *Client) logFailure(err error, p, msg string) {
	log := c.log.WithError(err).WithField("path", p)
	if errors.Is(err, ErrNotFound) {
		log.Debug(msg)
		return
	}
	log.Warn(msg)
}
