package kvcache

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyKey  = errors.New("kvcache: empty key")
	ErrNilClient = errors.New("kvcache: store client is required")
	ErrClosed    = errors.New("kvcache: cache closed")
)

// StoreConnectionError is reported asynchronously (logs, Hooks) when the store
// connection fails. It never fails a call by itself.
type StoreConnectionError struct {
	Err error
}

func (e *StoreConnectionError) Error() string {
	return fmt.Sprintf("kvcache: store connection: %v", e.Err)
}

func (e *StoreConnectionError) Unwrap() error { return e.Err }

// StoreReadError is returned by Get when the batched fetch itself failed.
// Every caller of the failed window gets one carrying the same Err.
type StoreReadError struct {
	Key string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("kvcache: get %q: %v", e.Key, e.Err)
}

func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError is returned by Set and Delete.
type StoreWriteError struct {
	Op  string // "set" | "delete"
	Key string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("kvcache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreAdminError is returned by Flush.
type StoreAdminError struct {
	Op  string
	Err error
}

func (e *StoreAdminError) Error() string {
	return fmt.Sprintf("kvcache: %s: %v", e.Op, e.Err)
}

func (e *StoreAdminError) Unwrap() error { return e.Err }
