package sched

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultQuantum is how often the running thread is marked for preemption.
const DefaultQuantum = 10 * time.Millisecond

type options struct {
	quantum            time.Duration
	ticks              <-chan time.Time
	stackSize          int
	memoryLimit        int64
	logger             *logrus.Logger
	requeueOnElevation bool
}

func defaultOptions() options {
	return options{
		quantum:   DefaultQuantum,
		stackSize: DefaultStackSize,
		logger:    logrus.StandardLogger(),
	}
}

// Option configures a Scheduler.
type Option func(*options)

// WithQuantum sets the preemption quantum. Zero or less disables the timer;
// threads then only switch at their own yields and blocking calls.
func WithQuantum(d time.Duration) Option {
	return func(o *options) {
		o.quantum = d
	}
}

// WithTickSource drives preemption from ticks instead of an internal
// ticker. Each received value counts as one expired quantum.
func WithTickSource(ticks <-chan time.Time) Option {
	return func(o *options) {
		o.ticks = ticks
	}
}

// WithStackSize sets the size of every thread's stack buffer.
func WithStackSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.stackSize = n
		}
	}
}

// WithMemoryLimit caps the bytes of stack the scheduler may hand out.
// Create fails with ErrAllocation once the cap would be exceeded.
func WithMemoryLimit(n int64) Option {
	return func(o *options) {
		o.memoryLimit = n
	}
}

// WithLogger sets the logger for scheduler events. Nil keeps the default.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRequeueOnElevation makes priority elevation also move a READY lock
// owner into the ready queue of its elevated priority. Without it the
// owner keeps its old queue position until it is next enqueued.
func WithRequeueOnElevation(on bool) Option {
	return func(o *options) {
		o.requeueOnElevation = on
	}
}
