package kvcache

import (
	"context"
	"time"
)

// KeyValueCache is the four-method contract shared by every cache in this
// module (Cache, Typed views are built on it, and the gRPC client implements it).
type KeyValueCache interface {
	// Set stores value under key. The TTL is the cache default unless WithTTL
	// is passed.
	Set(ctx context.Context, key, value string, opts ...SetOption) error

	// Get returns (value, true, nil) on hit and ("", false, nil) on miss.
	// Never-set and expired keys are both misses.
	Get(ctx context.Context, key string) (string, bool, error)

	// Delete removes key and reports whether a value was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Flush removes every entry of the store.
	Flush(ctx context.Context) error
}

type setOptions struct {
	ttl time.Duration
}

// SetOption overrides a default for a single Set call.
type SetOption func(*setOptions)

// WithTTL sets the expiry of one entry. 0 means the entry does not expire.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		if ttl >= 0 {
			o.ttl = ttl
		}
	}
}

// ResolveTTL returns the TTL a Set with opts would use given the default ttl.
func ResolveTTL(def time.Duration, opts ...SetOption) time.Duration {
	o := setOptions{ttl: def}
	for _, oo := range opts {
		oo(&o)
	}

	return o.ttl
}
