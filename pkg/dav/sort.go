package dav

import (
	"cmp"
	"slices"
	"strings"
)

// SortOrder selects ascending or descending listings.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

const (
	// AllPages requests the whole ordered listing.
	AllPages = -1

	// DefaultPageSize is used when ListOptions.PageSize is zero.
	DefaultPageSize = 20
)

// ListOptions controls ordering and pagination of a directory listing.
type ListOptions struct {
	// SortBy is the field to order by. Empty means FieldDisplayName.
	SortBy Field

	Order SortOrder

	// Page is the zero-based page index, or AllPages.
	Page int

	// PageSize is the number of entries per page. Zero means
	// DefaultPageSize.
	PageSize int
}

// DefaultListOptions returns the full listing sorted by name ascending.
func DefaultListOptions() ListOptions {
	return ListOptions{
		SortBy:   FieldDisplayName,
		Order:    Ascending,
		Page:     AllPages,
		PageSize: DefaultPageSize,
	}
}

func (o ListOptions) withDefaults() ListOptions {
	if o.SortBy == "" {
		o.SortBy = FieldDisplayName
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	return o
}

// Order returns a sorted copy of entries: directories first, then files,
// each group ordered by (field value, name). Sizes compare numerically and
// dates chronologically; every other field compares as a string.
func Order(entries []Entry, field Field, order SortOrder) ([]Entry, error) {
	if order != Ascending && order != Descending {
		return nil, &InvalidSortOrderError{Order: order}
	}

	byField, err := comparator(field)
	if err != nil {
		return nil, err
	}

	compare := func(a, b Entry) int {
		if c := byField(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	}
	if order == Descending {
		asc := compare
		compare = func(a, b Entry) int { return asc(b, a) }
	}

	dirs := make([]Entry, 0, len(entries))
	files := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		} else {
			files = append(files, e)
		}
	}

	slices.SortStableFunc(dirs, compare)
	slices.SortStableFunc(files, compare)

	return append(dirs, files...), nil
}

// Paginate returns page number page of size pageSize from items.
//
// A negative page (AllPages) returns items unchanged. A page past the end
// returns an empty slice. pageSize must be positive when a page is given.
func Paginate[T any](items []T, page, pageSize int) ([]T, error) {
	if page < 0 {
		return items, nil
	}
	if pageSize <= 0 {
		return nil, ErrInvalidPageSize
	}

	start := page * pageSize
	if start >= len(items) || start/pageSize != page {
		return []T{}, nil
	}
	end := min(start+pageSize, len(items))
	return items[start:end], nil
}

func comparator(field Field) (func(a, b Entry) int, error) {
	switch field {
	case FieldDisplayName:
		// The name tie-break alone orders by name.
		return func(a, b Entry) int { return 0 }, nil
	case FieldContentLength:
		return func(a, b Entry) int { return cmp.Compare(a.Size, b.Size) }, nil
	case FieldCreationDate:
		return func(a, b Entry) int { return a.Created.Compare(b.Created) }, nil
	case FieldLastModified:
		return func(a, b Entry) int { return a.Modified.Compare(b.Modified) }, nil
	case FieldContentType:
		return func(a, b Entry) int { return strings.Compare(a.ContentType, b.ContentType) }, nil
	case FieldETag:
		return func(a, b Entry) int { return strings.Compare(a.ETag, b.ETag) }, nil
	case FieldHref:
		return func(a, b Entry) int { return strings.Compare(a.Path, b.Path) }, nil
	default:
		return nil, &InvalidSelectorError{Selector: string(field)}
	}
}
