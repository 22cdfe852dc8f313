package sched

import "errors"

var (
	ErrOutOfMemory    = errors.New("out of memory")
	ErrEmptyQueue     = errors.New("empty task queue")
	ErrUnsupported    = errors.New("operation not supported")
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrNotStarted     = errors.New("kernel not started")
	ErrAlreadyStarted = errors.New("kernel already started")
	ErrNoReadyTask    = errors.New("no ready task left to run")
	ErrAlreadyQueued  = errors.New("task already owned by a queue")
	ErrSemaphoreBusy  = errors.New("semaphore has waiting tasks")
	ErrBadFrame       = errors.New("stack too small for context frame")
	ErrUnknownSyscall = errors.New("unknown system call")
)
