package dav

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodav/pkg/transport"
)

// ErrNotFound matches a TransportError whose response was 404.
var ErrNotFound = errors.New("dav: not found")

// ErrInvalidPageSize is returned when a concrete page is requested with a
// non-positive page size.
var ErrInvalidPageSize = errors.New("dav: page size must be positive")

// ErrNotADirectory is wrapped by DirectoryCreationError when a path or one
// of its prefixes exists as a file.
var ErrNotADirectory = errors.New("dav: not a directory")

// ErrRootPath is returned by operations that cannot target the server root.
var ErrRootPath = errors.New("dav: operation not permitted on the root")

// TransportError wraps a failed request to the server.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status of the failed response, or 0 when no
// response was received.
func (e *TransportError) StatusCode() int {
	var reqErr *transport.Error
	if errors.As(e.Err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode() == 404
}

// TranslationError reports a metadata field that could not be interpreted.
type TranslationError struct {
	Field Field
	Value string
	Err   error
}

func (e *TranslationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("translate response: %v", e.Err)
	}
	if e.Value == "" {
		return fmt.Sprintf("translate %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("translate %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// InvalidSelectorError reports a field outside the supported set.
type InvalidSelectorError struct {
	Selector string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid selector %q", e.Selector)
}

// InvalidSortOrderError reports a sort order other than Ascending or
// Descending.
type InvalidSortOrderError struct {
	Order SortOrder
}

func (e *InvalidSortOrderError) Error() string {
	return fmt.Sprintf("invalid sort order %d", int(e.Order))
}

// DirectoryCreationError reports a directory that could not be created.
type DirectoryCreationError struct {
	// Path is the prefix that failed.
	Path string
	Err  error
}

func (e *DirectoryCreationError) Error() string {
	return fmt.Sprintf("cannot create directory %q: %v", e.Path, e.Err)
}

func (e *DirectoryCreationError) Unwrap() error {
	return e.Err
}
