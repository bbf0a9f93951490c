package batcher

import "sync"

// waiter is the result slot shared by every caller of one key in one window.
// It is resolved exactly once.
type waiter[K comparable, V any] struct {
	key K

	value V
	found bool
	err   error

	done chan struct{}
	once sync.Once
}

func newWaiter[K comparable, V any](key K) *waiter[K, V] {
	return &waiter[K, V]{
		key:  key,
		done: make(chan struct{}),
	}
}

func (w *waiter[K, V]) Resolve(value V, found bool) {
	w.once.Do(func() {
		w.value = value
		w.found = found
		close(w.done)
	})
}

func (w *waiter[K, V]) Error(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.done)
	})
}

func (w *waiter[K, V]) Done() <-chan struct{} {
	return w.done
}

// Result must be called after Done is closed
func (w *waiter[K, V]) Result() (V, bool, error) {
	return w.value, w.found, w.err
}
