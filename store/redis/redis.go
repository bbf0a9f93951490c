// Package redis is a store.Client on top of go-redis.
//
// Keys map to plain string values: MGET for batched reads, SET with EX for
// writes, DEL for removal and FLUSHDB for flush. Connectivity state follows
// the client's dials and an initial PING.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	gredis "github.com/redis/go-redis/v9"

	"github.com/eaglemoor/kvcache/store"
)

var ErrNilClient = errors.New("redis store: nil client and empty addr")

const defaultPingTimeout = 5 * time.Second

type Config struct {
	// Client is used as is. When nil, a client is built from Addr/Password/DB
	// and owned by the store.
	Client   gredis.UniversalClient
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key as "<prefix>_<key>". Flush is not scoped by it.
	Prefix string

	// CloseClient makes Close close Client. Ignored for owned clients.
	CloseClient bool

	PingTimeout time.Duration // 0 => 5s
}

type Store struct {
	client      gredis.UniversalClient
	prefix      string
	closeClient bool

	state  *store.StateTracker
	closed atomic.Bool
}

var _ store.Client = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	client := cfg.Client
	closeClient := cfg.CloseClient
	if client == nil {
		if cfg.Addr == "" {
			return nil, ErrNilClient
		}
		client = gredis.NewClient(&gredis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		closeClient = true
	}

	s := &Store{
		client:      client,
		prefix:      cfg.Prefix,
		closeClient: closeClient,
		state:       store.NewStateTracker(store.StateConnecting),
	}
	client.AddHook(stateHook{s: s})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	go s.ping(timeout)

	return s, nil
}

func (s *Store) ping(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
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

func (s *Store) Key(key string) string {
	if s.prefix == "" {
		return key
	}

	return fmt.Sprintf("%s_%s", s.prefix, key)
}

func (s *Store) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	strkey := make([]string, 0, len(keys))
	for _, key := range keys {
		strkey = append(strkey, s.Key(key))
	}

	rows, err := s.client.MGet(ctx, strkey...).Result()
	if err != nil {
		return nil, err
	}

	for i, row := range rows {
		if row == nil {
			continue
		}

		switch v := row.(type) {
		case string:
			result[keys[i]] = v
		case []byte:
			result[keys[i]] = string(v)
		default:
			return nil, fmt.Errorf("redis store: unexpected MGET value %T for %q", row, keys[i])
		}
	}

	return result, nil
}

func (s *Store) Upsert(ctx context.Context, key, value string, expiry time.Duration) error {
	if expiry < 0 {
		expiry = 0
	}

	return s.client.Set(ctx, s.Key(key), value, expiry).Err()
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, s.Key(key)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *Store) Flush(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

func (s *Store) State() store.ConnState { return s.state.State() }

func (s *Store) Subscribe(buffer int) (<-chan store.StateEvent, func()) {
	return s.state.Subscribe(buffer)
}

// Close releases the client only when this store owns it.
// Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s.closeClient {
		if cerr := s.client.Close(); cerr != nil && !errors.Is(cerr, gredis.ErrClosed) {
			err = cerr
		}
	}

	s.state.Set(store.StateDisconnected, err)

	return err
}
