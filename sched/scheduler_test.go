package sched

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	t.Run("ids are monotonic and threads start ready", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		body := func(th *Thread, arg any) any { return nil }
		for want := TID(1); want <= 3; want++ {
			id, err := s.Create(body, nil, Medium)
			require.NoError(t, err)
			assert.Equal(t, want, id)
			info, err := s.Info(id)
			require.NoError(t, err)
			assert.Equal(t, Ready, info.State)
			assert.Zero(t, info.Dispatches)
		}
		assert.Equal(t, NoThread, s.Self())
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		_, err := s.Create(nil, nil, High)
		assert.ErrorIs(t, err, ErrNilEntry)
		_, err = s.Create(func(*Thread, any) any { return nil }, nil, Priority(7))
		assert.ErrorIs(t, err, ErrInvalidPriority)
		assert.ErrorIs(t, err, ErrMisuse)
	})

	t.Run("allocation failure only fails that call", func(t *testing.T) {
		s, hook := newTestScheduler(t, WithStackSize(1024), WithMemoryLimit(2048))
		ran := 0
		body := func(th *Thread, arg any) any {
			ran++
			return nil
		}
		_, err := s.Create(body, nil, Low)
		require.NoError(t, err)
		_, err = s.Create(body, nil, Low)
		require.NoError(t, err)
		_, err = s.Create(body, nil, Low)
		assert.ErrorIs(t, err, ErrAllocation)
		assert.True(t, hasMessage(hook, "thread creation failed"))

		require.NoError(t, s.Run())
		assert.Equal(t, 2, ran)
	})

	t.Run("after close", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		s.Close()
		_, err := s.Create(func(*Thread, any) any { return nil }, nil, Low)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestRun_NothingToDo(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)
	assert.NoError(t, s.Run())
}

func TestRun_StrictPriority(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)

	var trace []string
	body := func(th *Thread, arg any) any {
		label := arg.(string)
		for i := 0; i < 3; i++ {
			trace = append(trace, label)
			th.Yield()
		}
		trace = append(trace, label)
		return nil
	}
	// Created lowest first so that creation order cannot explain the result.
	_, err := s.Create(body, "L", Low)
	require.NoError(t, err)
	_, err = s.Create(body, "M", Medium)
	require.NoError(t, err)
	_, err = s.Create(body, "H", High)
	require.NoError(t, err)

	require.NoError(t, s.Run())
	assert.Equal(t, []string{
		"H", "H", "H", "H",
		"M", "M", "M", "M",
		"L", "L", "L", "L",
	}, trace)

	var counts [numPriorities]uint64
	for _, info := range s.Threads() {
		counts[info.Priority] = info.Dispatches
		assert.Equal(t, Terminated, info.State)
	}
	assert.GreaterOrEqual(t, counts[High], counts[Medium])
	assert.GreaterOrEqual(t, counts[Medium], counts[Low])
}

func TestRun_RoundRobinWithinLevel(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)

	var trace []TID
	body := func(th *Thread, arg any) any {
		for i := 0; i < 3; i++ {
			trace = append(trace, th.ID())
			th.Yield()
		}
		return nil
	}
	for i := 0; i < 3; i++ {
		_, err := s.Create(body, nil, Medium)
		require.NoError(t, err)
	}

	require.NoError(t, s.Run())
	assert.Equal(t, []TID{1, 2, 3, 1, 2, 3, 1, 2, 3}, trace)
}

func TestRun_HighAndLowYieldingFiveTimes(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)

	var (
		bID           TID
		aDispatches   uint64
		bDispatchesAt uint64
	)
	loop := func(th *Thread, arg any) any {
		n := 0
		for i := 0; i < 5; i++ {
			n++
			th.Yield()
		}
		if arg == "A" {
			aDispatches = th.Dispatches()
			info, err := th.Scheduler().Info(bID)
			assert.NoError(t, err)
			bDispatchesAt = info.Dispatches
		}
		return n
	}
	aID, err := s.Create(loop, "A", High)
	require.NoError(t, err)
	bID, err = s.Create(loop, "B", Low)
	require.NoError(t, err)

	require.NoError(t, s.Run())

	a, ok := s.Result(aID)
	require.True(t, ok)
	b, ok := s.Result(bID)
	require.True(t, ok)
	assert.Equal(t, 5, a)
	assert.Equal(t, 5, b)

	assert.EqualValues(t, 6, aDispatches)
	assert.Greater(t, aDispatches, bDispatchesAt)
	assert.Greater(t, float64(aDispatches)/float64(bDispatchesAt+1), 1.0)
}

func TestThread_SelfAndExit(t *testing.T) {
	t.Parallel()

	t.Run("self inside and outside threads", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		var seen TID
		id, err := s.Create(func(th *Thread, arg any) any {
			seen = th.Scheduler().Self()
			return nil
		}, nil, Medium)
		require.NoError(t, err)
		require.NoError(t, s.Run())
		assert.Equal(t, id, seen)
		assert.Equal(t, NoThread, s.Self())
	})

	t.Run("exit runs defers and skips the rest", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		var steps []string
		id, err := s.Create(func(th *Thread, arg any) any {
			defer func() { steps = append(steps, "deferred") }()
			steps = append(steps, "before")
			th.Exit(42)
			steps = append(steps, "after")
			return 0
		}, nil, Medium)
		require.NoError(t, err)
		require.NoError(t, s.Run())

		assert.Equal(t, []string{"before", "deferred"}, steps)
		v, ok := s.Result(id)
		assert.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("result of a live thread is not available", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.Create(func(th *Thread, arg any) any { return 1 }, nil, Low)
		require.NoError(t, err)
		_, ok := s.Result(id)
		assert.False(t, ok)
		_, ok = s.Result(99)
		assert.False(t, ok)
	})
}

func TestCreate_FromInsideAThread(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)

	var trace []string
	_, err := s.Create(func(th *Thread, arg any) any {
		_, err := th.Scheduler().Create(func(th *Thread, arg any) any {
			trace = append(trace, "child")
			return nil
		}, nil, Medium)
		assert.NoError(t, err)
		trace = append(trace, "parent")
		th.Yield()
		trace = append(trace, "parent again")
		return nil
	}, nil, Medium)
	require.NoError(t, err)

	require.NoError(t, s.Run())
	assert.Equal(t, []string{"parent", "child", "parent again"}, trace)
}

func TestPriorities(t *testing.T) {
	t.Parallel()

	t.Run("unknown id", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		_, err := s.Priority(5)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.SetPriority(5, High), ErrNotFound)
	})

	t.Run("new priority applies at the next enqueue", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		var trace []string
		_, err := s.Create(func(th *Thread, arg any) any {
			trace = append(trace, "A")
			assert.NoError(t, th.Scheduler().SetPriority(th.ID(), High))
			assert.Equal(t, High, th.Priority())
			th.Yield()
			trace = append(trace, "A")
			return nil
		}, nil, Low)
		require.NoError(t, err)
		_, err = s.Create(func(th *Thread, arg any) any {
			trace = append(trace, "B")
			return nil
		}, nil, Low)
		require.NoError(t, err)

		require.NoError(t, s.Run())
		assert.Equal(t, []string{"A", "A", "B"}, trace)
		p, err := s.Priority(1)
		require.NoError(t, err)
		assert.Equal(t, High, p)
	})

	t.Run("invalid", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.Create(func(*Thread, any) any { return nil }, nil, Low)
		require.NoError(t, err)
		assert.ErrorIs(t, s.SetPriority(id, Priority(-1)), ErrInvalidPriority)
	})
}

func TestRun_NotReentrant(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)
	var inner error
	_, err := s.Create(func(th *Thread, arg any) any {
		inner = th.Scheduler().Run()
		return nil
	}, nil, Medium)
	require.NoError(t, err)
	require.NoError(t, s.Run())
	assert.ErrorIs(t, inner, ErrRunning)
}

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()
	ticks := make(chan time.Time)
	s, _ := newTestScheduler(t, WithTickSource(ticks))
	s.Init()
	s.Init()
	_, err := s.Create(func(*Thread, any) any { return nil }, nil, Low)
	require.NoError(t, err)

	s.maskPreempt()
	timers := s.timers
	s.unmaskPreempt()
	assert.Equal(t, 1, timers)
}

func TestClose_ReleasesStacks(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t, WithStackSize(512))
	for i := 0; i < 4; i++ {
		_, err := s.Create(func(th *Thread, arg any) any {
			assert.Len(t, th.Stack(), 512)
			return nil
		}, nil, Medium)
		require.NoError(t, err)
	}
	require.NoError(t, s.Run())
	assert.EqualValues(t, 4*512, s.stacks.inUse)

	s.Close()
	s.Close()
	assert.Zero(t, s.stacks.inUse)
}

func TestNext_CountsLiveThreadsWhenIdle(t *testing.T) {
	t.Parallel()
	s, _ := newTestScheduler(t)

	th, live := s.next()
	assert.Nil(t, th)
	assert.Zero(t, live)

	id, err := s.Create(func(*Thread, any) any { return nil }, nil, Low)
	require.NoError(t, err)
	th, _ = s.next()
	require.NotNil(t, th)
	assert.Equal(t, id, th.ID())

	// The dispatched thread has not terminated, so it still counts.
	th, live = s.next()
	assert.Nil(t, th)
	assert.Equal(t, 1, live)
}

func TestRun_CreateFromOutsideWhileIdle(t *testing.T) {
	t.Parallel()
	for i := 0; i < 200; i++ {
		s, _ := newTestScheduler(t)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(func(*Thread, any) any { return nil }, nil, Medium)
			assert.NoError(t, err)
		}()
		// Whichever side of the loop's idle check the Create lands on,
		// Run must not mistake a READY thread for a stalled one.
		require.NoError(t, s.Run())
		wg.Wait()
		require.NoError(t, s.Run())

		info, err := s.Info(1)
		require.NoError(t, err)
		assert.Equal(t, Terminated, info.State)
	}
}

func TestStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "HIGH", High.String())
	assert.Equal(t, "Priority(9)", Priority(9).String())
	assert.Equal(t, "WAITING", Waiting.String())
	assert.Equal(t, fmt.Sprintf("State(%d)", 12), State(12).String())
}
