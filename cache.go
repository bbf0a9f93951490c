package kvcache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/eaglemoor/kvcache/batcher"
	"github.com/eaglemoor/kvcache/store"
)

// Cache implements KeyValueCache over a store.Client. Get calls issued within
// one window are answered by a single MultiGet; Set, Delete and Flush go to
// the store directly. Nothing is cached in process.
type Cache struct {
	client store.Client
	loader *batcher.Batcher[string, string]
	opt    *options

	stopWatch func()
	watchDone chan struct{}

	closed atomic.Bool
}

var _ KeyValueCache = (*Cache)(nil)

// New wraps client. It does not wait for the store to connect.
func New(client store.Client, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	o := defaultOptions()
	for _, oo := range opts {
		oo(o)
	}

	c := &Cache{
		client:    client,
		opt:       o,
		watchDone: make(chan struct{}),
	}

	c.loader = batcher.New(c.fetch,
		batcher.Window(o.Window),
		batcher.Timeout(o.Timeout),
		batcher.DispatchLimit(o.DispatchLimit),
		batcher.OnDispatch(c.dispatched),
	)

	events, stop := client.Subscribe(16)
	c.stopWatch = stop
	go c.watch(events)

	o.Logger.Debug("cache created", Fields{"state": client.State().String(), "ttl": o.TTL.String()})

	return c, nil
}

func (c *Cache) fetch(ctx context.Context, keys []string) (map[string]string, error) {
	return c.client.MultiGet(ctx, keys)
}

func (c *Cache) dispatched(keys int, took time.Duration, err error) {
	c.opt.Hooks.BatchDispatched(keys, took, err)

	if err != nil {
		c.opt.Logger.Warn("batched get failed", Fields{"keys": keys, "took": took.String(), "err": err})
		return
	}
	c.opt.Logger.Debug("batched get", Fields{"keys": keys, "took": took.String()})
}

// watch logs store connectivity transitions until the subscription is closed.
func (c *Cache) watch(events <-chan store.StateEvent) {
	defer close(c.watchDone)

	for ev := range events {
		c.opt.Hooks.StateChanged(ev.From, ev.To, ev.Err)

		f := Fields{"from": ev.From.String(), "to": ev.To.String()}
		switch ev.To {
		case store.StateConnected:
			c.opt.Logger.Info("store connected", f)
		case store.StateErrored:
			f["err"] = &StoreConnectionError{Err: ev.Err}
			c.opt.Logger.Error("store connection error", f)
		case store.StateDisconnected:
			if ev.Err != nil {
				f["err"] = ev.Err
			}
			c.opt.Logger.Warn("store disconnected", f)
		default:
			c.opt.Logger.Debug("store connecting", f)
		}
	}
}

// Set upserts value with the default TTL, or the one given by WithTTL.
func (c *Cache) Set(ctx context.Context, key, value string, opts ...SetOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	if c.closed.Load() {
		return ErrClosed
	}

	ttl := ResolveTTL(c.opt.TTL, opts...)
	if err := c.client.Upsert(ctx, key, value, ttl); err != nil {
		return &StoreWriteError{Op: "set", Key: key, Err: err}
	}

	return nil
}

// Get joins the current batch window. An empty stored value reads as a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	v, ok, err := c.loader.Load(ctx, key)
	if err != nil {
		switch {
		case errors.Is(err, batcher.ErrShutdown):
			return "", false, ErrClosed
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return "", false, err
		}

		return "", false, &StoreReadError{Key: key, Err: err}
	}

	if !ok || v == "" {
		return "", false, nil
	}

	return v, true, nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if c.closed.Load() {
		return false, ErrClosed
	}

	removed, err := c.client.Remove(ctx, key)
	if err != nil {
		return false, &StoreWriteError{Op: "delete", Key: key, Err: err}
	}

	return removed, nil
}

// Flush removes every entry of the store, not only the ones written by this cache.
func (c *Cache) Flush(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if err := c.client.Flush(ctx); err != nil {
		return &StoreAdminError{Op: "flush", Err: err}
	}

	c.opt.Logger.Info("store flushed", nil)

	return nil
}

// State returns the connectivity state of the store.
func (c *Cache) State() store.ConnState {
	return c.client.State()
}

// Close resolves the open Get window, closes the store client and stops the
// connectivity watcher. Safe to call multiple times.
func (c *Cache) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.loader.Shutdown()
	err := c.client.Close(ctx)

	c.stopWatch()
	<-c.watchDone

	return err
}
