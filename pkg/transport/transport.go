// Package transport performs the HTTP requests behind the WebDAV client.
//
// The Transport interface is deliberately small: a method token, a path
// relative to the server root, optional headers and body in; status, headers
// and the fully read body out. Statuses >= 400 are reported as *Error so
// callers only branch on the success codes they expect.
package transport

import (
	"context"
	"fmt"
	"net/http"
)

// WebDAV extension methods.
const (
	MethodPropfind = "PROPFIND"
	MethodMkcol    = "MKCOL"
)

// RequestOptions carries per-request fields.
type RequestOptions struct {
	// Header is merged over the transport's default headers.
	Header http.Header

	// Body is sent as the request body. It is kept in memory so the request
	// can be replayed on retry.
	Body []byte

	// NoRetry disables retries for this request.
	NoRetry bool
}

// Response is a completed HTTP exchange with status < 400.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single logical request, retrying internally when the
// implementation supports it.
type Transport interface {
	// Do sends method to path, which is relative to the transport's base URL.
	//
	// Returns:
	//   - *Response for any status below 400
	//   - *Error for statuses >= 400, network failures and cancellation
	Do(ctx context.Context, method, path string, opts RequestOptions) (*Response, error)
}

// Error describes a failed request.
type Error struct {
	Method string
	URL    string

	// StatusCode is 0 when no response was received.
	StatusCode int
	Header     http.Header
	Body       []byte

	// Err is the underlying network or context error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is likely transient.
func (e *Error) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Err != nil && !isContextErr(e.Err)
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode == http.StatusRequestTimeout:
		return true
	default:
		return e.StatusCode >= 500 && e.StatusCode <= 599
	}
}
