package kvcache

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/eaglemoor/kvcache/batcher"
)

const DefaultTTL = 300 * time.Second

type options struct {
	TTL           time.Duration
	Window        time.Duration
	Timeout       time.Duration
	DispatchLimit rate.Limit

	Logger Logger
	Hooks  Hooks
}

type Option func(*options)

func defaultOptions() *options {
	return &options{
		TTL:           DefaultTTL,
		Window:        batcher.DefaultWindow,
		DispatchLimit: rate.Inf,
		Logger:        NopLogger{},
		Hooks:         NopHooks{},
	}
}

// TTL setup expiry used by Set when the call has no WithTTL.
// 0 means entries do not expire.
//
// Default: 300s
func TTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.TTL = ttl
		}
	}
}

// Window setup how long Get keeps collecting keys before one multi-key fetch.
//
// Default: 1ms
func Window(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.Window = d
		}
	}
}

// Timeout bounds every batched fetch. 0 leaves timeouts to the store client.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		o.Timeout = d
	}
}

// DispatchLimit caps the rate of batched fetches against the store.
//
// Default: rate.Inf
func DispatchLimit(l rate.Limit) Option {
	return func(o *options) {
		if l > 0 {
			o.DispatchLimit = l
		}
	}
}

// WithLogger using logger for connectivity and error events
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithHooks using hooks for batch and connectivity events
func WithHooks(h Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.Hooks = h
		}
	}
}
