package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marmos91/dittodav/internal/ratelimiter"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-Id"

const userAgent = "dittodav"

// Config configures an HTTPTransport.
type Config struct {
	// URL is the WebDAV root, e.g. https://cloud.example.com/remote.php/webdav/
	URL string `mapstructure:"url" yaml:"url" validate:"required,url"`

	// Username and Password enable HTTP basic authentication when Username
	// is set.
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	// Timeout bounds a single attempt, including reading the body.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`

	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`

	// Retry controls retries of transient failures.
	Retry RetryPolicy `mapstructure:"retry" yaml:"retry"`

	// RateLimit throttles outbound requests.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures client-side throttling.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate. 0 disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`

	// Burst is the number of requests allowed above the sustained rate.
	Burst int `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// Shared transport tunings; each HTTPTransport gets a clone.
var defaultRoundTripper = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   16,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Option configures an HTTPTransport.
type Option func(*HTTPTransport)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *HTTPTransport) {
		if c != nil {
			t.client = c
		}
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(t *HTTPTransport) {
		if log != nil {
			t.log = log
		}
	}
}

// WithMetrics records every request in m.
func WithMetrics(m metrics.ClientMetrics) Option {
	return func(t *HTTPTransport) {
		if m != nil {
			t.metrics = m
		}
	}
}

// HTTPTransport implements Transport over net/http with basic auth,
// retries with exponential backoff, and optional rate limiting.
//
// MKCOL is never retried: a replay after a lost response would fail with 405
// although the collection was created.
//
// Thread safety:
// Safe for concurrent use.
type HTTPTransport struct {
	baseURL  *url.URL
	client   *http.Client
	username string
	password string
	headers  http.Header
	retry    RetryPolicy
	limiter  *ratelimiter.RateLimiter
	log      logrus.FieldLogger
	metrics  metrics.ClientMetrics
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport rooted at cfg.URL.
func NewHTTPTransport(cfg Config, opts ...Option) (*HTTPTransport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("transport: base URL is required")
	}

	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported URL scheme %q", base.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	t := &HTTPTransport{
		baseURL: base,
		client: &http.Client{
			Timeout:   timeout,
			Transport: defaultRoundTripper.Clone(),
		},
		username: cfg.Username,
		password: cfg.Password,
		headers:  headers,
		retry:    cfg.Retry.normalized(),
		limiter:  ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst),
		log:      logrus.StandardLogger(),
		metrics:  metrics.NewNoopClientMetrics(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// BaseURL returns the configured WebDAV root.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL.String()
}

// BasePath returns the path component of the WebDAV root without slashes,
// e.g. "remote.php/webdav". Servers report hrefs including this prefix.
func (t *HTTPTransport) BasePath() string {
	return strings.Trim(t.baseURL.Path, "/")
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	target := t.resolve(path)
	requestID := uuid.NewString()
	canRetry := !opts.NoRetry && method != MethodMkcol && method != http.MethodPost

	log := t.log.WithFields(logrus.Fields{
		"method":     method,
		"url":        target,
		"request_id": requestID,
	})

	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &Error{Method: method, URL: target, Err: err}
		}

		resp, err := t.roundTrip(ctx, method, target, requestID, opts)
		if err == nil {
			log.WithFields(logrus.Fields{
				"status":   resp.StatusCode,
				"attempt":  attempt,
				"duration": time.Since(start),
			}).Debug("WebDAV request completed")
			t.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
			return resp, nil
		}

		var reqErr *Error
		if !errors.As(err, &reqErr) {
			reqErr = &Error{Method: method, URL: target, Err: err}
		}

		if !canRetry || attempt >= t.retry.MaxRetries || !reqErr.Retryable() {
			log.WithFields(logrus.Fields{
				"status":  reqErr.StatusCode,
				"attempt": attempt,
			}).WithError(reqErr).Debug("WebDAV request failed")
			t.metrics.RecordRequest(method, reqErr.StatusCode, time.Since(start))
			return nil, reqErr
		}

		delay := t.retry.delay(attempt)
		log.WithFields(logrus.Fields{
			"status":  reqErr.StatusCode,
			"attempt": attempt,
			"delay":   delay,
		}).Warn("Retrying WebDAV request")
		t.metrics.RecordRetry(method)

		if err := sleep(ctx, delay); err != nil {
			return nil, &Error{Method: method, URL: target, Err: err}
		}
	}
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) roundTrip(ctx context.Context, method, target, requestID string, opts RequestOptions) (*Response, error) {
	var body io.Reader = http.NoBody
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	req.Header = t.headers.Clone()
	for k, values := range opts.Header {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(RequestIDHeader, requestID)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if t.username != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       data,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// resolve joins path onto the base URL, escaping each segment. A trailing
// slash on path is kept.
func (t *HTTPTransport) resolve(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return t.baseURL.String()
	}
	segments := strings.Split(trimmed, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := t.baseURL.JoinPath(segments...)
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}
	return u.String()
}
