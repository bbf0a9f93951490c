package batcher

import "errors"

var (
	ErrBatcherNotInit = errors.New("use batcher.New for create and init batcher")
	ErrPanicRecover   = errors.New("panic recover on fetch func")
	ErrShutdown       = errors.New("batcher is shut down")
)
