// Package sched is a user-level threading runtime. Logical threads are
// multiplexed onto a single execution stream by a strict-priority scheduler:
// at most one thread body runs at any instant and control only changes hands
// at yield, a contended Mutex.Lock, a blocking Join, exit, or a preemption
// checkpoint once the quantum ticker has fired.
//
// A Scheduler is created with New and driven by Run, which becomes the
// dispatch loop and returns once every thread has terminated (or returns a
// *DeadlockError when the remaining threads can never be woken). Thread
// bodies receive their *Thread handle and use it for every blocking call:
//
//	s := sched.New()
//	id, _ := s.Create(func(t *sched.Thread, arg any) any {
//		for i := 0; i < 5; i++ {
//			t.Yield()
//		}
//		return 5
//	}, nil, sched.High)
//	if err := s.Run(); err != nil {
//		log.Fatal(err)
//	}
//	v, _ := s.Result(id)
package sched
