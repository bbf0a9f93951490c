package kvcache

import (
	"time"

	"github.com/eaglemoor/kvcache/store"
)

// Hooks receive high-signal events. Implementations must be cheap and must
// not block: BatchDispatched runs on the dispatch path of every Get window.
type Hooks interface {
	// BatchDispatched is called after every multi-key fetch.
	BatchDispatched(keys int, took time.Duration, err error)

	// StateChanged is called for every store connectivity transition.
	StateChanged(from, to store.ConnState, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) BatchDispatched(int, time.Duration, error)            {}
func (NopHooks) StateChanged(store.ConnState, store.ConnState, error) {}
