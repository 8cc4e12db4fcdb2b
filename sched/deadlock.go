package sched

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StalledThread describes one thread that cannot currently make progress.
type StalledThread struct {
	ID       TID
	Priority Priority
	State    State
	// WaitingOn is the mutex owner for BLOCKED threads and the join target
	// for WAITING ones.
	WaitingOn TID
}

// Report is a snapshot of every BLOCKED or WAITING thread, plus any thread
// whose body ended without returning. It does not look for a cycle; it
// only shows who was stalled when it was taken.
type Report struct {
	Scheduler uuid.UUID
	TakenAt   time.Time
	Stalled   []StalledThread
}

// Deadlocked reports whether any thread was stalled.
func (r Report) Deadlocked() bool {
	return len(r.Stalled) > 0
}

// ReportDeadlocks scans the registry, logs what it finds and returns it.
func (s *Scheduler) ReportDeadlocks() Report {
	rep := s.snapshot()
	log := s.log.WithField("taken_at", rep.TakenAt)
	if !rep.Deadlocked() {
		log.Info("deadlock report: no stalled threads")
		return rep
	}
	log.WithField("stalled", len(rep.Stalled)).Warn("deadlock report")
	for _, st := range rep.Stalled {
		log.WithFields(logrus.Fields{
			"tid":        st.ID,
			"priority":   st.Priority,
			"state":      st.State,
			"waiting_on": st.WaitingOn,
		}).Warn("thread is blocked/waiting")
	}
	return rep
}

func (s *Scheduler) snapshot() Report {
	s.maskPreempt()
	defer s.unmaskPreempt()
	rep := Report{
		Scheduler: s.id,
		TakenAt:   time.Now().UTC(),
	}
	for _, t := range s.order {
		st := StalledThread{ID: t.id, Priority: t.prio, State: t.state}
		switch t.state {
		case Blocked:
			if t.waitMutex != nil && t.waitMutex.owner != nil {
				st.WaitingOn = t.waitMutex.owner.id
			}
		case Waiting:
			st.WaitingOn = t.waitJoin
		case Running:
			// A RUNNING thread that is not current lost its body without
			// terminating.
			if t == s.current {
				continue
			}
		default:
			continue
		}
		rep.Stalled = append(rep.Stalled, st)
	}
	return rep
}
