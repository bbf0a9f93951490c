// Package bolt is a store.Client persisted in a single bbolt file.
//
// Each value is stored as 8 bytes big endian expiry (unix nanos, 0 = none)
// followed by the raw value. Expired entries read as misses and are dropped
// on the next write to the same key or on Flush.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/eaglemoor/kvcache/store"
)

const (
	DefaultBucket = "kvcache"
	headerSize    = 8
)

var ErrCorruptEntry = errors.New("bolt store: corrupt entry")

type Config struct {
	Path   string
	Bucket string // "" => DefaultBucket
	// Now overrides the clock used for expiry.
	Now func() time.Time
}

type Store struct {
	db     *bbolt.DB
	bucket []byte
	now    func() time.Time

	state  *store.StateTracker
	closed atomic.Bool
}

var _ store.Client = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	db, err := bbolt.Open(cfg.Path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	bucket := []byte(DefaultBucket)
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Store{
		db:     db,
		bucket: bucket,
		now:    now,
		state:  store.NewStateTracker(store.StateConnected),
	}, nil
}

func (s *Store) MultiGet(_ context.Context, keys []string) (map[string]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	result := make(map[string]string, len(keys))
	now := s.now()

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, key := range keys {
			raw := b.Get([]byte(key))
			if raw == nil {
				continue
			}

			value, live, err := decode(raw, now)
			if err != nil {
				return err
			}
			if live {
				result[key] = value
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) Upsert(_ context.Context, key, value string, expiry time.Duration) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	var expiresAt int64
	if expiry > 0 {
		expiresAt = s.now().Add(expiry).UnixNano()
	}

	buf := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(buf[:headerSize], uint64(expiresAt))
	copy(buf[headerSize:], value)

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
}

func (s *Store) Remove(_ context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}

	var removed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)

		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}

		_, live, err := decode(raw, s.now())
		if err != nil {
			return err
		}
		removed = live

		return b.Delete([]byte(key))
	})

	return removed, err
}

// Flush drops and recreates the bucket.
func (s *Store) Flush(_ context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(s.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(s.bucket)
		return err
	})
}

func (s *Store) State() store.ConnState { return s.state.State() }

func (s *Store) Subscribe(buffer int) (<-chan store.StateEvent, func()) {
	return s.state.Subscribe(buffer)
}

func (s *Store) Close(context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.db.Close()
	s.state.Set(store.StateDisconnected, err)

	return err
}

// decode copies the value out of raw; raw is only valid inside the transaction.
func decode(raw []byte, now time.Time) (string, bool, error) {
	if len(raw) < headerSize {
		return "", false, ErrCorruptEntry
	}

	expiresAt := int64(binary.BigEndian.Uint64(raw[:headerSize]))
	if expiresAt > 0 && now.UnixNano() >= expiresAt {
		return "", false, nil
	}

	return string(raw[headerSize:]), true, nil
}
