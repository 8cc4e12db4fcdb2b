package sched

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// TID identifies a thread. Ids start at 1 and are never reused.
type TID int

// NoThread is what Self reports when no created thread is running.
const NoThread TID = 0

// Priority is a scheduling level. Higher values are dispatched first.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

const numPriorities = 3

func (p Priority) valid() bool {
	return p >= Low && p <= High
}

func (p Priority) String() string {
	switch p {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// State is the lifecycle state of a thread.
type State int

const (
	Ready State = iota
	Running
	Blocked // waiting on a Mutex
	Waiting // waiting on another thread's termination
	Terminated
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Waiting:
		return "WAITING"
	case Terminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Entry is a thread body. Returning from it is the same as calling Exit
// with the returned value.
type Entry func(t *Thread, arg any) any

// Thread is the control block of one logical thread. The handle passed to
// an Entry is the only way for a body to yield, join, lock or exit.
//
// Every field below s is guarded by the scheduler's preemption mask.
type Thread struct {
	id TID
	s  *Scheduler

	// Continuation: the body's goroutine is parked on resume whenever the
	// thread is not RUNNING.
	resume chan struct{}

	// Set by the quantum ticker, consumed at the next checkpoint.
	preempt atomic.Bool

	state  State
	prio   Priority
	result any
	exited bool // Exit was called
	stack  *stack

	// Container the thread currently sits in: a ready queue, a mutex's
	// waiters, or another thread's joiners. nil while RUNNING or TERMINATED.
	in *threadQueue

	joiners threadQueue

	// What a stalled thread is stalled on, for deadlock reports.
	waitMutex *Mutex
	waitJoin  TID

	dispatches uint64
}

// ID returns the thread's id, unique within its scheduler.
func (t *Thread) ID() TID {
	return t.id
}

// Scheduler returns the scheduler the thread belongs to.
func (t *Thread) Scheduler() *Scheduler {
	return t.s
}

// Priority returns t's current priority, which a mutex contender may have
// raised above the one it was created with.
func (t *Thread) Priority() Priority {
	t.s.maskPreempt()
	defer t.s.unmaskPreempt()
	return t.prio
}

// State returns t's lifecycle state.
func (t *Thread) State() State {
	t.s.maskPreempt()
	defer t.s.unmaskPreempt()
	return t.state
}

// Dispatches is how many times the scheduler has handed control to t.
func (t *Thread) Dispatches() uint64 {
	t.s.maskPreempt()
	defer t.s.unmaskPreempt()
	return t.dispatches
}

// Stack is the thread's private scratch buffer. It stays valid until the
// scheduler is closed.
func (t *Thread) Stack() []byte {
	return t.stack.buf
}

// Yield moves the running thread to the tail of its priority queue and
// hands control back to the scheduler.
func (t *Thread) Yield() {
	t.yield(false)
}

// Checkpoint is a preemption safe point. If the quantum ticker fired since
// the thread was last dispatched, the thread yields; otherwise it returns
// immediately. Long-running bodies should call it from their loops.
func (t *Thread) Checkpoint() {
	if t.preempt.Swap(false) {
		t.yield(true)
	}
}

func (t *Thread) yield(preempted bool) {
	s := t.s
	s.maskPreempt()
	s.mustBeCurrent(t, "yield")
	s.transition(t, Running, Ready)
	s.ready.push(t)
	if preempted {
		s.preemptions++
	}
	s.log.WithFields(t.fields()).WithField("preempted", preempted).Debug("thread yielded")
	s.unmaskPreempt()
	t.switchOut()
}

// Exit terminates the calling thread with result. It never returns;
// deferred calls in the body run before the thread is torn down.
func (t *Thread) Exit(result any) {
	t.s.maskPreempt()
	t.s.mustBeCurrent(t, "exit")
	t.result = result
	t.exited = true
	t.s.unmaskPreempt()
	runtime.Goexit()
}

// switchOut transfers control to the scheduler context and parks until t
// is dispatched again. The mask must not be held.
func (t *Thread) switchOut() {
	t.s.back <- struct{}{}
	<-t.resume
}

func (t *Thread) fields() logrus.Fields {
	return logrus.Fields{
		"tid":      t.id,
		"priority": t.prio,
	}
}
