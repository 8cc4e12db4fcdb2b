package sched

import (
	"fmt"
	"sync/atomic"
)

// Mutex is a recursive lock owned by at most one thread. Contending
// threads queue FIFO. A higher-priority contender raises the owner's
// priority to its own until the owner fully releases the lock.
//
// The zero value is an unlocked mutex. The first Lock binds it to the
// locking thread's scheduler; using it from a thread of any other
// scheduler panics until Init resets it.
type Mutex struct {
	sched atomic.Pointer[Scheduler]

	// guarded by the bound scheduler's mask
	locked  bool
	owner   *Thread
	count   int
	waiters threadQueue

	original Priority // owner's priority when it acquired the lock
	elevated Priority // owner's current, possibly raised, priority
}

// Init resets m to the unlocked, unbound state. Resetting a held mutex
// panics.
func (m *Mutex) Init() {
	unmask := m.guard()
	if m.locked || m.waiters.len() > 0 {
		unmask()
		panic("sched: Init of a mutex that is held")
	}
	m.owner = nil
	m.count = 0
	m.waiters = threadQueue{}
	m.original, m.elevated = Low, Low
	unmask()
	m.sched.Store(nil)
}

// bind ties m to s on first use and panics if m already belongs to
// another scheduler. The mask must not be held.
func (m *Mutex) bind(s *Scheduler) {
	if m.sched.CompareAndSwap(nil, s) {
		return
	}
	if m.sched.Load() != s {
		panic("sched: mutex shared between threads of different schedulers")
	}
}

// guard masks preemption on the bound scheduler, if any, and returns the
// matching unmask.
func (m *Mutex) guard() func() {
	s := m.sched.Load()
	if s == nil {
		return func() {}
	}
	s.maskPreempt()
	return s.unmaskPreempt
}

// Lock acquires m for t, blocking while another thread owns it. Locking a
// mutex t already owns increments its recursion count.
func (m *Mutex) Lock(t *Thread) {
	s := t.s
	m.bind(s)
	s.maskPreempt()
	s.mustBeCurrent(t, "lock")
	switch {
	case !m.locked:
		m.locked = true
		m.owner = t
		m.count = 1
		m.original = t.prio
		m.elevated = t.prio
		s.unmaskPreempt()
		t.Checkpoint()
		return
	case m.owner == t:
		m.count++
		s.unmaskPreempt()
		t.Checkpoint()
		return
	}

	if t.prio > m.owner.prio {
		s.elevate(m, t.prio)
	}
	s.transition(t, Running, Blocked)
	t.waitMutex = m
	m.waiters.push(t)
	s.log.WithFields(t.fields()).WithField("owner", m.owner.id).Debug("thread blocked on mutex")
	s.unmaskPreempt()

	t.switchOut()

	s.maskPreempt()
	if m.owner != t || m.count != 1 {
		s.unmaskPreempt()
		panic(fmt.Sprintf("sched: thread %d woke from Lock without owning the mutex", t.id))
	}
	s.unmaskPreempt()
}

// elevate raises the owner's priority field. The owner stays in whatever
// queue it is in unless WithRequeueOnElevation is set, so by default the
// raise only matters from the owner's next enqueue on.
func (s *Scheduler) elevate(m *Mutex, prio Priority) {
	owner := m.owner
	from := owner.prio
	m.elevated = prio
	owner.prio = prio
	if s.opts.requeueOnElevation && owner.state == Ready && owner.in != nil {
		owner.in.remove(owner)
		s.ready.push(owner)
	}
	s.log.WithFields(owner.fields()).WithField("from", from).Info("priority elevated")
}

// Unlock releases one level of t's hold on m. When the count reaches zero
// the owner's priority is restored and the head waiter, if any, becomes
// the new owner. Unlock by a thread that does not own m returns
// ErrNotOwner and changes nothing.
func (m *Mutex) Unlock(t *Thread) error {
	s := t.s
	m.bind(s)
	s.maskPreempt()
	s.mustBeCurrent(t, "unlock")
	if !m.locked || m.owner != t {
		s.unmaskPreempt()
		return fmt.Errorf("%w (thread %d)", ErrNotOwner, t.id)
	}

	m.count--
	if m.count == 0 {
		if m.elevated > m.original {
			t.prio = m.original
			s.log.WithFields(t.fields()).Info("priority restored")
		}
		if w := m.waiters.pop(); w != nil {
			w.waitMutex = nil
			m.owner = w
			m.count = 1
			m.original = w.prio
			m.elevated = w.prio
			s.transition(w, Blocked, Ready)
			s.ready.push(w)
		} else {
			m.locked = false
			m.owner = nil
		}
	}
	m.check()
	s.unmaskPreempt()

	t.Checkpoint()
	return nil
}

func (m *Mutex) check() {
	if !m.locked && (m.owner != nil || m.count != 0) {
		panic("sched: unlocked mutex with an owner or a count")
	}
	if m.count > 0 && !m.locked {
		panic("sched: mutex count without lock")
	}
	if m.locked && m.count <= 0 {
		panic("sched: locked mutex with no count")
	}
}

// Owner returns the owning thread's id, or NoThread.
func (m *Mutex) Owner() TID {
	defer m.guard()()
	if m.owner == nil {
		return NoThread
	}
	return m.owner.id
}

// Count is the owner's recursion depth.
func (m *Mutex) Count() int {
	defer m.guard()()
	return m.count
}

// Locked reports whether some thread owns m.
func (m *Mutex) Locked() bool {
	defer m.guard()()
	return m.locked
}

// Waiters lists blocked threads in wake-up order.
func (m *Mutex) Waiters() []TID {
	defer m.guard()()
	return m.waiters.ids()
}
