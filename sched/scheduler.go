package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Scheduler owns every piece of shared runtime state: the ready queues, the
// thread registry and the pointer to the running thread. All of it is
// mutated only while preemption is masked.
type Scheduler struct {
	id   uuid.UUID
	opts options
	log  *logrus.Entry

	// Preemption mask. The quantum ticker takes it before touching the
	// running thread, so holding it keeps the ticker out.
	intr sync.Mutex

	initOnce sync.Once
	running  atomic.Bool
	stop     chan struct{}
	wg       sync.WaitGroup

	// Scheduler context: threads send on back to hand control to the loop.
	back chan struct{}

	// guarded by intr
	closed      bool
	timers      int
	nextID      TID
	current     *Thread
	ready       readyQueues
	registry    map[TID]*Thread
	order       []*Thread
	stacks      stackAllocator
	preemptions uint64
}

// New builds a scheduler. Nothing runs until Run is called.
func New(opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	id := uuid.New()
	return &Scheduler{
		id:       id,
		opts:     o,
		log:      o.logger.WithField("sched", id.String()),
		stop:     make(chan struct{}),
		back:     make(chan struct{}),
		registry: make(map[TID]*Thread),
		stacks: stackAllocator{
			size:  o.stackSize,
			limit: o.memoryLimit,
		},
	}
}

// ID is the scheduler's instance id, attached to its log lines and reports.
func (s *Scheduler) ID() uuid.UUID {
	return s.id
}

func (s *Scheduler) maskPreempt() {
	s.intr.Lock()
}

func (s *Scheduler) unmaskPreempt() {
	s.intr.Unlock()
}

// Init installs the preemption timer. Only the first call has any effect;
// Create and Run call it implicitly.
func (s *Scheduler) Init() {
	s.initOnce.Do(func() {
		s.startPreemption()
		s.log.WithField("quantum", s.opts.quantum).Debug("scheduler initialised")
	})
}

// Create registers a new thread running entry(t, arg) and queues it at
// priority prio. The thread does not start until the scheduler dispatches it.
func (s *Scheduler) Create(entry Entry, arg any, prio Priority) (TID, error) {
	if entry == nil {
		return NoThread, ErrNilEntry
	}
	if !prio.valid() {
		return NoThread, fmt.Errorf("%w: %d", ErrInvalidPriority, int(prio))
	}
	s.Init()

	s.maskPreempt()
	defer s.unmaskPreempt()
	if s.closed {
		return NoThread, ErrClosed
	}
	st, err := s.stacks.alloc()
	if err != nil {
		s.log.WithError(err).WithField("priority", prio).Warn("thread creation failed")
		return NoThread, err
	}
	s.nextID++
	t := &Thread{
		id:     s.nextID,
		s:      s,
		resume: make(chan struct{}),
		state:  Ready,
		prio:   prio,
		stack:  st,
	}
	s.registry[t.id] = t
	s.order = append(s.order, t)
	s.ready.push(t)
	go s.trampoline(t, entry, arg)

	s.log.WithFields(t.fields()).Debug("thread created")
	return t.id, nil
}

// trampoline is the body of a thread's goroutine. It waits for the first
// dispatch, runs entry and, when entry returns or calls Exit, terminates
// the thread and returns control to the scheduler.
//
// Any other way out (a panic, or runtime.Goexit called by the body) is not
// recovered. The thread is left RUNNING without a processor and control
// goes back to the loop, which later reports it as stalled; a panic keeps
// unwinding and takes the process down with its own stack.
func (s *Scheduler) trampoline(t *Thread, entry Entry, arg any) {
	<-t.resume
	returned := false
	defer func() {
		if !returned && !t.exited {
			s.log.WithField("tid", t.id).Error("thread body exited without returning")
			s.back <- struct{}{}
			return
		}
		s.terminate(t)
		s.back <- struct{}{}
	}()
	t.result = entry(t, arg)
	returned = true
}

// terminate moves t to TERMINATED and readies everything that joined it.
func (s *Scheduler) terminate(t *Thread) {
	s.maskPreempt()
	defer s.unmaskPreempt()
	s.mustBeCurrent(t, "exit")
	s.transition(t, Running, Terminated)
	for w := t.joiners.pop(); w != nil; w = t.joiners.pop() {
		w.waitJoin = NoThread
		s.transition(w, Waiting, Ready)
		s.ready.push(w)
	}
	s.log.WithFields(t.fields()).WithField("dispatches", t.dispatches).Debug("thread terminated")
}

// Run turns the calling goroutine into the scheduler context and dispatches
// threads until none is ready. It returns nil when every thread has
// terminated and a *DeadlockError when some are still blocked or waiting.
func (s *Scheduler) Run() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)
	s.Init()

	s.log.Debug("scheduler loop started")
	for {
		t, live := s.next()
		if t == nil {
			return s.idle(live)
		}
		t.resume <- struct{}{}
		<-s.back
	}
}

// next picks the head of the highest non-empty ready queue and marks it
// RUNNING. When nothing is ready it returns nil and the number of threads
// that have not terminated, counted under the same mask so that a Create
// racing the loop either gets dispatched or is not counted.
func (s *Scheduler) next() (*Thread, int) {
	s.maskPreempt()
	defer s.unmaskPreempt()
	s.current = nil
	t := s.ready.pop()
	if t == nil {
		live := 0
		for _, th := range s.order {
			if th.state != Terminated {
				live++
			}
		}
		return nil, live
	}
	s.transition(t, Ready, Running)
	t.dispatches++
	t.preempt.Store(false)
	s.current = t
	s.log.WithFields(t.fields()).Debug("dispatching thread")
	return t, 0
}

// idle decides why the ready queues ran dry, given the live count next
// saw. With nothing ready, any live thread is stalled.
func (s *Scheduler) idle(live int) error {
	if live == 0 {
		s.log.Debug("all threads terminated")
		return nil
	}
	rep := s.ReportDeadlocks()
	return &DeadlockError{Report: rep}
}

// transition checks and applies one edge of the thread state machine.
func (s *Scheduler) transition(t *Thread, from, to State) {
	if t.state != from {
		panic(fmt.Sprintf("sched: thread %d: transition %s -> %s from state %s", t.id, from, to, t.state))
	}
	t.state = to
}

func (s *Scheduler) mustBeCurrent(t *Thread, op string) {
	if s.current != t || t.state != Running {
		panic(fmt.Sprintf("sched: %s called on thread %d, which is not the running thread", op, t.id))
	}
}

// Self returns the id of the running thread, or NoThread when the
// scheduler is between dispatches or not running at all.
func (s *Scheduler) Self() TID {
	s.maskPreempt()
	defer s.unmaskPreempt()
	if s.current == nil {
		return NoThread
	}
	return s.current.id
}

// SetPriority changes a thread's priority. A thread already sitting in a
// ready queue keeps its place until it is next enqueued.
func (s *Scheduler) SetPriority(id TID, prio Priority) error {
	if !prio.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(prio))
	}
	s.maskPreempt()
	defer s.unmaskPreempt()
	t, ok := s.registry[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	t.prio = prio
	return nil
}

// Priority returns the current, possibly elevated, priority of thread id,
// or ErrNotFound.
func (s *Scheduler) Priority(id TID) (Priority, error) {
	s.maskPreempt()
	defer s.unmaskPreempt()
	t, ok := s.registry[id]
	if !ok {
		return Low, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t.prio, nil
}

// Result returns the exit value of a terminated thread.
func (s *Scheduler) Result(id TID) (any, bool) {
	s.maskPreempt()
	defer s.unmaskPreempt()
	t, ok := s.registry[id]
	if !ok || t.state != Terminated {
		return nil, false
	}
	return t.result, true
}

// ThreadInfo is a point-in-time view of one thread.
type ThreadInfo struct {
	ID         TID
	Priority   Priority
	State      State
	Dispatches uint64
}

func (t *Thread) info() ThreadInfo {
	return ThreadInfo{
		ID:         t.id,
		Priority:   t.prio,
		State:      t.state,
		Dispatches: t.dispatches,
	}
}

// Info returns a snapshot of thread id, or ErrNotFound for an id this
// scheduler never handed out.
func (s *Scheduler) Info(id TID) (ThreadInfo, error) {
	s.maskPreempt()
	defer s.unmaskPreempt()
	t, ok := s.registry[id]
	if !ok {
		return ThreadInfo{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return t.info(), nil
}

// Threads lists every thread ever created, in creation order.
func (s *Scheduler) Threads() []ThreadInfo {
	s.maskPreempt()
	defer s.unmaskPreempt()
	out := make([]ThreadInfo, len(s.order))
	for i, t := range s.order {
		out[i] = t.info()
	}
	return out
}

// Preemptions counts the yields forced by the quantum ticker.
func (s *Scheduler) Preemptions() uint64 {
	s.maskPreempt()
	defer s.unmaskPreempt()
	return s.preemptions
}

// Close stops the ticker and signal watchers and releases every stack.
// Call it after Run has returned. Threads that never terminated stay
// parked and are not resumed. Closing twice is a no-op.
func (s *Scheduler) Close() {
	s.maskPreempt()
	if s.closed {
		s.unmaskPreempt()
		return
	}
	s.closed = true
	s.unmaskPreempt()

	// No goroutine can join wg once closed is set.
	close(s.stop)
	s.wg.Wait()

	s.maskPreempt()
	defer s.unmaskPreempt()
	for _, t := range s.order {
		s.stacks.free(t.stack)
	}
}
