package sched

import "time"

// startPreemption launches the quantum ticker. It runs at most once per
// scheduler, from Init.
func (s *Scheduler) startPreemption() {
	ticks := s.opts.ticks
	var ticker *time.Ticker
	if ticks == nil {
		if s.opts.quantum <= 0 {
			return
		}
		ticker = time.NewTicker(s.opts.quantum)
		ticks = ticker.C
	}

	s.maskPreempt()
	if s.closed {
		s.unmaskPreempt()
		if ticker != nil {
			ticker.Stop()
		}
		return
	}
	s.timers++
	s.wg.Add(1)
	s.unmaskPreempt()

	go func() {
		defer s.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-s.stop:
				return
			case _, ok := <-ticks:
				if !ok {
					return
				}
				s.tick()
			}
		}
	}()
}

// tick is the timer handler. It cannot stop a goroutine mid-instruction,
// so it marks the running thread and the thread gives up the processor at
// its next checkpoint, exactly as if it had yielded.
func (s *Scheduler) tick() {
	s.maskPreempt()
	defer s.unmaskPreempt()
	if t := s.current; t != nil && t.state == Running {
		t.preempt.Store(true)
	}
}
