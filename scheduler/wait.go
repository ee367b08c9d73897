package scheduler

import "github.com/tinygo-org/fibers/internal/task"

// WaitQueue is a FIFO of parked tasks. The zero value is an empty queue.
//
// A WaitQueue belongs to the scheduler of the first task that waits on it.
type WaitQueue struct {
	s *Scheduler
	q task.Queue
}

// Wake makes the task that has waited longest ready again. It reports whether
// there was one.
func (q *WaitQueue) Wake() bool {
	if q.q.Empty() {
		return false
	}
	t := q.q.Pop()
	t.RunState = Ready
	q.s.counters.Wakes++
	return true
}

// WakeAll makes every waiting task ready again and returns how many there
// were.
func (q *WaitQueue) WakeAll() int {
	n := 0
	for q.Wake() {
		n++
	}
	return n
}

// Len returns the number of parked tasks.
func (q *WaitQueue) Len() int {
	return q.q.Len()
}
