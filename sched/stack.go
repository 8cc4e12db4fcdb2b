package sched

import "fmt"

// DefaultStackSize is the per-thread stack buffer size.
const DefaultStackSize = 8192

// noCopy lets go vet's copylocks check flag accidental copies of a stack.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// stack is a buffer owned by exactly one thread for its whole lifetime.
type stack struct {
	noCopy noCopy
	buf    []byte
}

// stackAllocator hands out fixed-size stacks against an optional byte
// budget. It is guarded by the scheduler's preemption mask.
type stackAllocator struct {
	size  int
	limit int64 // 0 means unlimited
	inUse int64
}

func (a *stackAllocator) alloc() (*stack, error) {
	if a.limit > 0 && a.inUse+int64(a.size) > a.limit {
		return nil, fmt.Errorf("%w: %d of %d bytes in use, need %d", ErrAllocation, a.inUse, a.limit, a.size)
	}
	a.inUse += int64(a.size)
	return &stack{buf: make([]byte, a.size)}, nil
}

func (a *stackAllocator) free(st *stack) {
	if st.buf == nil {
		panic("sched: stack freed twice")
	}
	a.inUse -= int64(len(st.buf))
	st.buf = nil
}
