package sched

import "fmt"

// threadQueue is a FIFO of threads. The same type backs the ready queues,
// mutex waiter queues and join lists; a thread records which one holds it
// so that it can never sit in two at once.
type threadQueue struct {
	q []*Thread
}

func (q *threadQueue) push(t *Thread) {
	if t.in != nil {
		panic(fmt.Sprintf("sched: thread %d enqueued while already queued", t.id))
	}
	t.in = q
	q.q = append(q.q, t)
}

// pop removes the head, or returns nil if the queue is empty.
func (q *threadQueue) pop() *Thread {
	if len(q.q) == 0 {
		return nil
	}
	t := q.q[0]
	q.q[0] = nil
	q.q = q.q[1:]
	if t.in != q {
		panic(fmt.Sprintf("sched: thread %d popped from a queue it is not in", t.id))
	}
	t.in = nil
	return t
}

// remove unlinks t from anywhere in the queue.
func (q *threadQueue) remove(t *Thread) bool {
	for i, c := range q.q {
		if c == t {
			copy(q.q[i:], q.q[i+1:])
			q.q[len(q.q)-1] = nil
			q.q = q.q[:len(q.q)-1]
			t.in = nil
			return true
		}
	}
	return false
}

func (q *threadQueue) len() int {
	return len(q.q)
}

// ids lists the queued thread ids, head first.
func (q *threadQueue) ids() []TID {
	out := make([]TID, len(q.q))
	for i, t := range q.q {
		out[i] = t.id
	}
	return out
}

// readyQueues holds one FIFO per priority level.
type readyQueues [numPriorities]threadQueue

// push appends t to the queue of its current priority.
func (r *readyQueues) push(t *Thread) {
	r[t.prio].push(t)
}

// pop takes the head of the highest non-empty level. Lower levels are only
// looked at when every higher level is empty.
func (r *readyQueues) pop() *Thread {
	for p := High; p >= Low; p-- {
		if t := r[p].pop(); t != nil {
			return t
		}
	}
	return nil
}

func (r *readyQueues) len() int {
	n := 0
	for i := range r {
		n += r[i].len()
	}
	return n
}
