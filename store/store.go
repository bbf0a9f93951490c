// Package store defines the boundary between the cache and the external
// key-value store that owns durability.
//
// Implementations live in subpackages:
//   - memory:    in-process LRU with per-entry expiry (tests, demos).
//   - redis:     Redis via go-redis.
//   - couchbase: Couchbase bucket via gocb.
//   - bolt:      single-file bbolt database.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("store: client closed")

// Client is an opaque connection to a remote key-value store.
// Implementations must be safe for concurrent use.
type Client interface {
	// MultiGet fetches many keys in one round trip. The result holds hits only;
	// a missing or expired key has no entry. An error fails the whole call.
	MultiGet(ctx context.Context, keys []string) (map[string]string, error)

	// Upsert stores value under key. expiry <= 0 means no expiry.
	Upsert(ctx context.Context, key, value string, expiry time.Duration) error

	// Remove deletes key and reports whether a value was actually removed.
	Remove(ctx context.Context, key string) (bool, error)

	// Flush drops every entry of the store (bucket, db, file).
	Flush(ctx context.Context) error

	// State returns the current connectivity state.
	State() ConnState

	// Subscribe delivers connectivity transitions. The returned func
	// unsubscribes and closes the channel.
	Subscribe(buffer int) (<-chan StateEvent, func())

	// Close releases the connection.
	Close(ctx context.Context) error
}
