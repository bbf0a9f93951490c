// Package couchbase is a store.Client on top of a Couchbase bucket (gocb v2).
//
// Values are stored as raw strings. Batched reads use Collection.Do with one
// GetOp per key, writes use Upsert with the entry expiry, flush goes through
// the bucket manager and requires flush to be enabled on the bucket.
package couchbase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/couchbase/gocb/v2"

	"github.com/eaglemoor/kvcache/store"
)

const defaultReadyTimeout = 10 * time.Second

var ErrInvalidConfig = errors.New("couchbase store: invalid config")

type Config struct {
	ConnStr  string // couchbase://host
	Bucket   string
	Username string
	Password string

	// Scope and Collection select a named collection; empty => default collection.
	Scope      string
	Collection string

	ReadyTimeout time.Duration // 0 => 10s
	KVTimeout    time.Duration // 0 => gocb default
}

func (c Config) validate() error {
	switch {
	case c.ConnStr == "":
		return fmt.Errorf("%w: empty connection string", ErrInvalidConfig)
	case c.Bucket == "":
		return fmt.Errorf("%w: empty bucket", ErrInvalidConfig)
	case c.Username == "":
		return fmt.Errorf("%w: empty username", ErrInvalidConfig)
	}

	return nil
}

// collection is the part of *gocb.Collection the store uses.
type collection interface {
	Do(ops []gocb.BulkOp, opts *gocb.BulkOpOptions) error
	Upsert(id string, val interface{}, opts *gocb.UpsertOptions) (*gocb.MutationResult, error)
	Remove(id string, opts *gocb.RemoveOptions) (*gocb.MutationResult, error)
}

// flusher is the part of *gocb.BucketManager the store uses.
type flusher interface {
	FlushBucket(name string, opts *gocb.FlushBucketOptions) error
}

type Store struct {
	bucket  string
	coll    collection
	manager flusher
	close   func() error

	transcoder gocb.Transcoder

	state  *store.StateTracker
	closed atomic.Bool
}

var _ store.Client = (*Store)(nil)

// New connects to the cluster and opens the bucket. It does not wait for the
// bucket to become ready: the store starts in StateConnecting and moves to
// StateConnected or StateErrored in the background. Operations issued before
// that are held by gocb until bootstrap completes or KVTimeout expires.
func New(cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cluster, err := gocb.Connect(cfg.ConnStr, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			KVTimeout: cfg.KVTimeout,
		},
	})
	if err != nil {
		return nil, err
	}

	bucket := cluster.Bucket(cfg.Bucket)

	coll := bucket.DefaultCollection()
	if cfg.Collection != "" {
		scope := cfg.Scope
		if scope == "" {
			scope = "_default"
		}
		coll = bucket.Scope(scope).Collection(cfg.Collection)
	}

	s := newStore(cfg.Bucket, coll, cluster.Buckets(), func() error { return cluster.Close(nil) })

	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = defaultReadyTimeout
	}
	go s.waitReady(bucket, timeout)

	return s, nil
}

func newStore(bucket string, coll collection, manager flusher, closeFn func() error) *Store {
	return &Store{
		bucket:     bucket,
		coll:       coll,
		manager:    manager,
		close:      closeFn,
		transcoder: gocb.NewRawStringTranscoder(),
		state:      store.NewStateTracker(store.StateConnecting),
	}
}

func (s *Store) waitReady(bucket *gocb.Bucket, timeout time.Duration) {
	if err := bucket.WaitUntilReady(timeout, nil); err != nil {
		s.setState(store.StateErrored, err)
		return
	}
	s.setState(store.StateConnected, nil)
}

func (s *Store) setState(state store.ConnState, err error) {
	if s.closed.Load() {
		return
	}
	s.state.Set(state, err)
}

// MultiGet issues one bulk operation for all keys. Missing documents are
// misses; any other per-document error fails the whole call.
func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	gets := make([]*gocb.GetOp, 0, len(keys))
	ops := make([]gocb.BulkOp, 0, len(keys))
	for _, key := range keys {
		op := &gocb.GetOp{ID: key}
		gets = append(gets, op)
		ops = append(ops, op)
	}

	opts := &gocb.BulkOpOptions{Transcoder: s.transcoder}
	if deadline, ok := ctx.Deadline(); ok {
		opts.Timeout = time.Until(deadline)
	}

	if err := s.coll.Do(ops, opts); err != nil {
		return nil, err
	}

	for _, op := range gets {
		if op.Err != nil {
			if errors.Is(op.Err, gocb.ErrDocumentNotFound) {
				continue
			}
			return nil, fmt.Errorf("get %q: %w", op.ID, op.Err)
		}

		var v string
		if err := op.Result.Content(&v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", op.ID, err)
		}
		result[op.ID] = v
	}

	return result, nil
}

func (s *Store) Upsert(ctx context.Context, key, value string, expiry time.Duration) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if expiry < 0 {
		expiry = 0
	}

	_, err := s.coll.Upsert(key, value, &gocb.UpsertOptions{
		Expiry:     expiry,
		Transcoder: s.transcoder,
		Context:    ctx,
	})

	return err
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, store.ErrClosed
	}

	_, err := s.coll.Remove(key, &gocb.RemoveOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *Store) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	return s.manager.FlushBucket(s.bucket, &gocb.FlushBucketOptions{Context: ctx})
}

func (s *Store) State() store.ConnState { return s.state.State() }

func (s *Store) Subscribe(buffer int) (<-chan store.StateEvent, func()) {
	return s.state.Subscribe(buffer)
}

func (s *Store) Close(context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.close != nil {
		err = s.close()
	}
	s.state.Set(store.StateDisconnected, err)

	return err
}
