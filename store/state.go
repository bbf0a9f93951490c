package store

import (
	"context"
	"sync"
)

// ConnState is the connectivity state of a store client.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	StateErrored
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// StateEvent is a single connectivity transition. Err is set for StateErrored
// and, when the client knows why, for StateDisconnected.
type StateEvent struct {
	From ConnState
	To   ConnState
	Err  error
}

// StateTracker holds the connectivity state of a client and fans transitions
// out to subscribers. The zero value starts in StateConnecting.
type StateTracker struct {
	mu      sync.Mutex
	state   ConnState
	err     error
	subs    map[int]chan StateEvent
	nextID  int
	changed chan struct{}
}

func NewStateTracker(initial ConnState) *StateTracker {
	return &StateTracker{state: initial}
}

// init must be called with t.mu held
func (t *StateTracker) init() {
	if t.changed == nil {
		t.changed = make(chan struct{})
	}
	if t.subs == nil {
		t.subs = make(map[int]chan StateEvent)
	}
}

func (t *StateTracker) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// Err returns the error attached to the last transition, if any.
func (t *StateTracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// Set moves the tracker to state to. Repeating the current state without an
// error is a no-op; repeating StateErrored with a new error is reported again.
// Subscribers that are not keeping up miss events instead of blocking Set.
func (t *StateTracker) Set(to ConnState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()

	from := t.state
	if from == to && err == nil {
		return
	}

	t.state = to
	t.err = err

	ev := StateEvent{From: from, To: to, Err: err}
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}

	close(t.changed)
	t.changed = make(chan struct{})
}

// Subscribe returns a channel of transitions and a func that stops delivery.
func (t *StateTracker) Subscribe(buffer int) (<-chan StateEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.init()

	id := t.nextID
	t.nextID++

	ch := make(chan StateEvent, buffer)
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			delete(t.subs, id)
			close(ch)
		})
	}
}

// Await blocks until the tracker reaches want or ctx is done.
// Waiting for any state other than StateDisconnected on a disconnected
// tracker returns ErrClosed.
func (t *StateTracker) Await(ctx context.Context, want ConnState) error {
	for {
		t.mu.Lock()
		t.init()
		state := t.state
		changed := t.changed
		t.mu.Unlock()

		if state == want {
			return nil
		}
		if state == StateDisconnected {
			return ErrClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
