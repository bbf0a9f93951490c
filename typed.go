package kvcache

import (
	"context"
	"fmt"

	"github.com/eaglemoor/kvcache/codec"
)

// Typed is a typed view over any KeyValueCache. Values go through codec on
// the way in and out; batching and expiry are those of the underlying cache.
type Typed[V any] struct {
	cache KeyValueCache
	codec codec.Codec[V]
}

func NewTyped[V any](cache KeyValueCache, c codec.Codec[V]) *Typed[V] {
	return &Typed[V]{cache: cache, codec: c}
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V, opts ...SetOption) error {
	b, err := t.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("kvcache: encode %q: %w", key, err)
	}

	return t.cache.Set(ctx, key, string(b), opts...)
}

// Get returns ok=false on miss. A payload that does not decode is an error,
// not a miss.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	raw, ok, err := t.cache.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	v, err := t.codec.Decode([]byte(raw))
	if err != nil {
		return zero, false, fmt.Errorf("kvcache: decode %q: %w", key, err)
	}

	return v, true, nil
}

func (t *Typed[V]) Delete(ctx context.Context, key string) (bool, error) {
	return t.cache.Delete(ctx, key)
}

func (t *Typed[V]) Flush(ctx context.Context) error {
	return t.cache.Flush(ctx)
}
