package dav

import (
	"fmt"
	"time"
)

// Kind distinguishes files from directories.
type Kind int

const (
	File Kind = iota
	Directory
)

// DirectoryContentType is the content type assigned when neither the file
// name nor the server identify one.
const DirectoryContentType = "directory"

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "file":
		*k = File
	case "directory":
		*k = Directory
	default:
		return fmt.Errorf("unknown kind %q", b)
	}
	return nil
}

// Entry is the metadata of one remote path.
type Entry struct {
	// Name is the leaf display name.
	Name string `json:"name"`

	// Path is the normalized remote path, without leading or trailing slash.
	Path string `json:"path"`

	Kind        Kind      `json:"kind"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag,omitempty"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// IsDir reports whether e is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == Directory
}

// Equal reports whether e and o describe the same record. Timestamps are
// compared as instants.
func (e Entry) Equal(o Entry) bool {
	return e.Name == o.Name &&
		e.Path == o.Path &&
		e.Kind == o.Kind &&
		e.ContentType == o.ContentType &&
		e.ETag == o.ETag &&
		e.Size == o.Size &&
		e.Created.Equal(o.Created) &&
		e.Modified.Equal(o.Modified)
}

// unchanged reports whether a freshly fetched e can skip replacing cached.
// When both carry an ETag it is authoritative.
func (e Entry) unchanged(cached Entry) bool {
	if e.ETag != "" && cached.ETag != "" {
		return e.ETag == cached.ETag && e.Path == cached.Path
	}
	return e.Equal(cached)
}
