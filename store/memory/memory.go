// Package memory is an in-process store.Client backed by an LRU with
// per-entry expiry. It never leaves StateConnected until Close.
package memory

import (
	"context"
	"sync/atomic"
	"time"

	hlru "github.com/hashicorp/golang-lru/v2"

	"github.com/eaglemoor/kvcache/store"
)

const DefaultSize = 10_000

type Config struct {
	// Size is the maximum number of entries. 0 => DefaultSize.
	Size int
	// Now overrides the clock used for expiry.
	Now func() time.Time
}

type entry struct {
	value   string
	expires time.Time // zero => no expiry
}

type Store struct {
	cache  *hlru.Cache[string, entry]
	now    func() time.Time
	state  *store.StateTracker
	closed atomic.Bool
}

var _ store.Client = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}

	c, err := hlru.New[string, entry](size)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		cache: c,
		now:   now,
		state: store.NewStateTracker(store.StateConnected),
	}, nil
}

func (s *Store) MultiGet(_ context.Context, keys []string) (map[string]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	now := s.now()
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		e, ok := s.cache.Get(key)
		if !ok {
			continue
		}
		if e.expired(now) {
			s.cache.Remove(key)
			continue
		}
		result[key] = e.value
	}

	return result, nil
}

func (s *Store) Upsert(_ context.Context, key, value string, expiry time.Duration) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	e := entry{value: value}
	if expiry > 0 {
		e.expires = s.now().Add(expiry)
	}
	s.cache.Add(key, e)

	return nil
}

func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}

	e, ok := s.cache.Peek(key)
	if !ok {
		return false, nil
	}

	s.cache.Remove(key)

	return !e.expired(s.now()), nil
}

func (s *Store) Flush(_ context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	s.cache.Purge()

	return nil
}

func (s *Store) Len() int { return s.cache.Len() }

func (s *Store) State() store.ConnState { return s.state.State() }

func (s *Store) Subscribe(buffer int) (<-chan store.StateEvent, func()) {
	return s.state.Subscribe(buffer)
}

func (s *Store) Close(_ context.Context) error {
	if s.closed.CompareAndSwap(false, true) {
		s.cache.Purge()
		s.state.Set(store.StateDisconnected, nil)
	}

	return nil
}

func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}
