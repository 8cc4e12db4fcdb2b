package workload

import (
	"errors"
	"fmt"

	"greensched/sched"
)

// MultiplyGreen computes a×b from inside thread t. It creates one worker
// thread per row range at priority prio, each yielding after every row,
// and joins them all before returning. Every worker reports the number of
// rows it computed as its exit value.
func MultiplyGreen(t *sched.Thread, a, b *Matrix, parts int, prio sched.Priority) (*Matrix, error) {
	if err := check(a, b); err != nil {
		return nil, err
	}
	c := NewMatrix(a.N)
	s := t.Scheduler()

	ranges := SplitRows(a.N, parts)
	ids := make([]sched.TID, 0, len(ranges))
	for _, r := range ranges {
		id, err := s.Create(rowWorker, rowJob{a: a, b: b, c: c, r: r}, prio)
		if err != nil {
			return nil, fmt.Errorf("workload: starting worker for rows %d-%d: %w", r.Start, r.End, err)
		}
		ids = append(ids, id)
	}

	rows := 0
	for _, id := range ids {
		v, err := collect(t, id)
		if err != nil {
			return nil, fmt.Errorf("workload: joining worker %d: %w", id, err)
		}
		rows += v.(int)
	}
	if rows != a.N {
		return nil, fmt.Errorf("workload: workers computed %d of %d rows", rows, a.N)
	}
	return c, nil
}

// collect waits for worker id and returns its exit value. Workers with
// fewer rows can finish while the coordinator is still joining an earlier
// one; a join on such a worker reports ErrNotFound, and its value is read
// from the scheduler instead.
func collect(t *sched.Thread, id sched.TID) (any, error) {
	v, err := t.Join(id)
	if errors.Is(err, sched.ErrNotFound) {
		if res, ok := t.Scheduler().Result(id); ok {
			return res, nil
		}
	}
	return v, err
}

type rowJob struct {
	a, b, c *Matrix
	r       Range
}

func rowWorker(t *sched.Thread, arg any) any {
	job := arg.(rowJob)
	for i := job.r.Start; i < job.r.End; i++ {
		MultiplyRow(job.a, job.b, job.c, i)
		t.Yield()
	}
	return job.r.Len()
}

// RunGreen multiplies a×b on s: it creates a coordinator thread running
// MultiplyGreen and drives s until every thread has finished.
func RunGreen(s *sched.Scheduler, a, b *Matrix, parts int) (*Matrix, error) {
	var (
		out    *Matrix
		outErr error
	)
	_, err := s.Create(func(t *sched.Thread, arg any) any {
		out, outErr = MultiplyGreen(t, a, b, parts, sched.Medium)
		return nil
	}, nil, sched.High)
	if err != nil {
		return nil, err
	}
	if err := s.Run(); err != nil {
		return nil, err
	}
	return out, outErr
}
