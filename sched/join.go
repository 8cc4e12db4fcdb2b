package sched

import "fmt"

// Join blocks until thread id terminates and returns its exit value.
// It fails with ErrNotFound when id is unknown or has already terminated,
// so each thread's result is only observable by joiners that arrived while
// it was still alive.
func (t *Thread) Join(id TID) (any, error) {
	s := t.s
	s.maskPreempt()
	s.mustBeCurrent(t, "join")
	if id == t.id {
		s.unmaskPreempt()
		return nil, ErrJoinSelf
	}
	target, ok := s.registry[id]
	if !ok || target.state == Terminated {
		s.unmaskPreempt()
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.transition(t, Running, Waiting)
	t.waitJoin = id
	target.joiners.push(t)
	s.log.WithFields(t.fields()).WithField("target", id).Debug("thread waiting on join")
	s.unmaskPreempt()

	t.switchOut()

	s.maskPreempt()
	defer s.unmaskPreempt()
	if target.state != Terminated {
		panic(fmt.Sprintf("sched: thread %d resumed from join before %d terminated", t.id, id))
	}
	return target.result, nil
}
