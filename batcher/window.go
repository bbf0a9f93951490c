package batcher

import "context"

// window is the set of keys collected since the previous dispatch.
type window[K comparable, V any] struct {
	ctx     context.Context
	keys    []K
	pending map[K]*waiter[K, V]
}

func newWindow[K comparable, V any](ctx context.Context) *window[K, V] {
	return &window[K, V]{
		ctx:     ctx,
		pending: make(map[K]*waiter[K, V]),
	}
}

// add returns the waiter for key, creating it on first use.
// b.mu must be lock before
func (w *window[K, V]) add(key K) *waiter[K, V] {
	if p, ok := w.pending[key]; ok {
		return p
	}

	p := newWaiter[K, V](key)
	w.pending[key] = p
	w.keys = append(w.keys, key)

	return p
}

// resolve fans the fetch result out to every waiter. Keys absent from values
// are misses. A fetch error fails every waiter with the same error.
func (w *window[K, V]) resolve(values map[K]V, err error) {
	for _, key := range w.keys {
		p := w.pending[key]

		if err != nil {
			p.Error(err)
			continue
		}

		v, ok := values[key]
		p.Resolve(v, ok)
	}
}
