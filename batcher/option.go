package batcher

import (
	"time"

	"golang.org/x/time/rate"
)

type opt struct {
	Window        time.Duration
	Timeout       time.Duration
	DispatchLimit rate.Limit
	OnDispatch    func(keys int, took time.Duration, err error)
}

type Option func(*opt)

// Window setup how long a batch window stays open after the first key arrives.
// Every Load issued while the window is open lands in the same fetch.
// Zero closes the window on the next scheduler pass.
//
// Default: 1ms
func Window(d time.Duration) Option {
	return func(o *opt) {
		if d >= 0 {
			o.Window = d
		}
	}
}

// Timeout maximum execution time of one fetch call
func Timeout(d time.Duration) Option {
	return func(o *opt) {
		o.Timeout = d
	}
}

// DispatchLimit caps how often windows are dispatched to the fetch func.
// While a window waits for its turn it keeps collecting keys, so under load
// batches grow instead of fetches piling up.
//
// Default: rate.Inf (no cap)
func DispatchLimit(l rate.Limit) Option {
	return func(o *opt) {
		if l > 0 {
			o.DispatchLimit = l
		}
	}
}

// OnDispatch is called after every fetch with the number of keys, the fetch
// duration and the fetch error. It runs on the dispatch goroutine.
func OnDispatch(fn func(keys int, took time.Duration, err error)) Option {
	return func(o *opt) {
		o.OnDispatch = fn
	}
}
