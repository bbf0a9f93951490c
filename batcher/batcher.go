// Package batcher coalesces concurrent single-key loads into one multi-key
// fetch per window.
//
// The first Load after a dispatch opens a window. Every Load issued while the
// window is open joins it; each distinct key is fetched once and all callers
// of that key share the result. There is no caching between windows.
package batcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultWindow = time.Millisecond

// FetchFunc loads many keys at once. Keys absent from the returned map are
// misses. An error fails every key of the call.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// New create new batcher
func New[K comparable, V any](fetch FetchFunc[K, V], opts ...Option) *Batcher[K, V] {
	o := &opt{
		Window:        DefaultWindow,
		DispatchLimit: rate.Inf,
	}

	for _, oo := range opts {
		oo(o)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Batcher[K, V]{
		ctx:     ctx,
		cancel:  cancel,
		opt:     o,
		fetch:   fetch,
		limiter: rate.NewLimiter(o.DispatchLimit, 1),
	}
}

type Batcher[K comparable, V any] struct {
	ctx    context.Context
	cancel func()

	opt     *opt
	fetch   FetchFunc[K, V]
	limiter *rate.Limiter

	window *window[K, V]
	mu     sync.Mutex

	wg       sync.WaitGroup
	shutdown bool
}

// Load load data with key. found is false on a miss, which is not an error.
// If ctx is done before the window resolves Load returns ctx.Err(), but the key
// stays in the fetch.
func (b *Batcher[K, V]) Load(ctx context.Context, key K) (value V, found bool, err error) {
	if b.ctx == nil {
		return value, false, ErrBatcherNotInit
	}

	waiters, err := b.load(ctx, key)
	if err != nil {
		return value, false, err
	}

	w := waiters[0]
	select {
	case <-w.Done():
		return w.Result()
	case <-ctx.Done():
		return value, false, ctx.Err()
	}
}

// LoadMany load keys in one window and return hits and errors maps.
// Misses are absent from both maps.
func (b *Batcher[K, V]) LoadMany(ctx context.Context, keys ...K) (map[K]V, map[K]error) {
	data := make(map[K]V, len(keys))
	errors := make(map[K]error, len(keys))

	if b.ctx == nil {
		for _, key := range keys {
			errors[key] = ErrBatcherNotInit
		}

		return data, errors
	}

	if len(keys) == 0 {
		return data, errors
	}

	// remove double
	keys = scoringKey(keys)

	waiters, err := b.load(ctx, keys...)
	if err != nil {
		for _, key := range keys {
			errors[key] = err
		}

		return data, errors
	}

	for _, w := range waiters {
		select {
		case <-w.Done():
			v, ok, err := w.Result()
			switch {
			case err != nil:
				errors[w.key] = err
			case ok:
				data[w.key] = v
			}
		case <-ctx.Done():
			errors[w.key] = ctx.Err()
		}
	}

	return data, errors
}

// load puts keys into the open window, opening one if needed.
func (b *Batcher[K, V]) load(ctx context.Context, keys ...K) ([]*waiter[K, V], error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shutdown {
		return nil, ErrShutdown
	}

	if b.window == nil {
		b.window = newWindow[K, V](ctx)
		b.wg.Add(1)
		go b.schedule(b.window)
	}

	waiters := make([]*waiter[K, V], 0, len(keys))
	for _, key := range keys {
		waiters = append(waiters, b.window.add(key))
	}

	return waiters, nil
}

// schedule waits out the window, detaches it from the batcher and runs the fetch.
// On Shutdown the open window is dispatched right away.
func (b *Batcher[K, V]) schedule(w *window[K, V]) {
	defer b.wg.Done()

	timer := time.NewTimer(b.opt.Window)
	select {
	case <-timer.C:
	case <-b.ctx.Done():
		timer.Stop()
	}

	// the window stays open while waiting for a dispatch token
	_ = b.limiter.Wait(b.ctx)

	b.mu.Lock()
	if b.window == w {
		b.window = nil
	}
	b.mu.Unlock()

	b.dispatch(w)
}

func (b *Batcher[K, V]) dispatch(w *window[K, V]) {
	ctx, cancel := b.context(w.ctx)
	defer cancel()

	start := time.Now()
	values, err := b.call(ctx, w.keys)

	if b.opt.OnDispatch != nil {
		b.opt.OnDispatch(len(w.keys), time.Since(start), err)
	}

	w.resolve(values, err)
}

func (b *Batcher[K, V]) call(ctx context.Context, keys []K) (values map[K]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = fmt.Errorf("%w: %#v", ErrPanicRecover, r)
		}
	}()

	return b.fetch(ctx, keys)
}

// context detaches the fetch from the cancellation of the caller that opened
// the window; its values are kept.
func (b *Batcher[K, V]) context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)

	if b.opt.Timeout > 0 {
		return context.WithTimeout(ctx, b.opt.Timeout)
	}

	return context.WithCancel(ctx)
}

// Shutdown dispatches the open window, waits for running fetches and rejects
// every later Load with ErrShutdown.
func (b *Batcher[K, V]) Shutdown() {
	if b.ctx == nil {
		return
	}

	b.mu.Lock()
	b.shutdown = true
	b.cancel()
	b.mu.Unlock()

	b.wg.Wait()
}
