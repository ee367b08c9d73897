package task

// If true, check internal invariants at run time.
const asserts = false

// Queue is a FIFO container of tasks.
// The zero value is an empty queue.
type Queue struct {
	head, tail *Task
	n          int
}

// Push a task onto the queue.
func (q *Queue) Push(t *Task) {
	if asserts && t.Next != nil {
		runtimePanic("task: pushing a task to a queue with a non-nil Next pointer")
	}
	if q.tail != nil {
		q.tail.Next = t
	}
	q.tail = t
	t.Next = nil
	if q.head == nil {
		q.head = t
	}
	q.n++
}

// Pop a task off of the queue.
func (q *Queue) Pop() *Task {
	t := q.head
	if t == nil {
		return nil
	}
	q.head = t.Next
	if q.tail == t {
		q.tail = nil
	}
	t.Next = nil
	q.n--
	return t
}

// Empty checks if the queue is empty.
func (q *Queue) Empty() bool {
	return q.head == nil
}

// Len returns the number of tasks in the queue.
func (q *Queue) Len() int {
	return q.n
}

// Pool is a LIFO container of tasks.
// The zero value is an empty pool.
// This is slightly cheaper than a queue, so it can be preferable when strict ordering is not necessary.
type Pool struct {
	top *Task
}

// Push a task onto the pool.
func (p *Pool) Push(t *Task) {
	if asserts && t.Next != nil {
		runtimePanic("task: pushing a task to a pool with a non-nil Next pointer")
	}
	p.top, t.Next = t, p.top
}

// Pop a task off of the pool.
func (p *Pool) Pop() *Task {
	t := p.top
	if t != nil {
		p.top = t.Next
		t.Next = nil
	}
	return t
}

// Empty checks if the pool is empty.
func (p *Pool) Empty() bool {
	return p.top == nil
}
