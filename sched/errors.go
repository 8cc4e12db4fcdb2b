package sched

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned by Create when the stack budget is exhausted.
	ErrAllocation = errors.New("sched: stack allocation failed")
	// ErrNotFound is returned for unknown thread ids and for joins on a
	// thread that already terminated.
	ErrNotFound = errors.New("sched: thread not found")
	// ErrMisuse marks API calls that break the runtime's usage contract.
	ErrMisuse = errors.New("sched: misuse")
	// ErrDeadlock is wrapped by the error Run returns when threads are
	// left blocked or waiting with nothing ready to wake them.
	ErrDeadlock = errors.New("sched: all remaining threads are stalled")
	// ErrRunning is returned by a second concurrent Run.
	ErrRunning = errors.New("sched: scheduler loop already running")
	// ErrClosed is returned by Create and WatchSignals after Close.
	ErrClosed = errors.New("sched: scheduler closed")
)

var (
	ErrNotOwner        = fmt.Errorf("%w: unlock by a thread that does not own the mutex", ErrMisuse)
	ErrJoinSelf        = fmt.Errorf("%w: thread cannot join itself", ErrMisuse)
	ErrInvalidPriority = fmt.Errorf("%w: invalid priority", ErrMisuse)
	ErrNilEntry        = fmt.Errorf("%w: nil entry function", ErrMisuse)
)

// DeadlockError is returned by Run when no thread is ready but some threads
// have not terminated. It carries the report taken at that moment.
type DeadlockError struct {
	Report Report
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("%s: %d thread(s) blocked or waiting", ErrDeadlock, len(e.Report.Stalled))
}

func (e *DeadlockError) Unwrap() error {
	return ErrDeadlock
}
