package cache

import (
	"context"
	"time"
)

// Noop is a Store that stores nothing. Every Get is a miss.
type Noop struct{}

var _ Store = Noop{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Delete(context.Context, string) error                     { return nil }
func (Noop) DeleteMany(context.Context, []string) error               { return nil }
func (Noop) Close() error                                             { return nil }

// IsNoop reports whether store caches nothing (nil or Noop).
func IsNoop(store Store) bool {
	if store == nil {
		return true
	}
	_, ok := store.(Noop)
	return ok
}
