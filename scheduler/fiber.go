package scheduler

import "github.com/tinygo-org/fibers/internal/task"

// Fiber is the handle a task function receives. It is only valid while that
// task runs: once the function returns, every method except ID and
// Scheduler panics.
type Fiber struct {
	s   *Scheduler
	t   *task.Task
	gen uint64
}

// ID returns the slot the task runs in.
func (f *Fiber) ID() TaskID {
	return f.t.ID()
}

// Scheduler returns the scheduler running the task.
func (f *Fiber) Scheduler() *Scheduler {
	return f.s
}

// Yield lets the other ready tasks run. It returns once the round-robin
// order comes back to this task.
func (f *Fiber) Yield() {
	f.mustBeRunning("Yield")
	f.s.counters.Yields++
	f.s.yield()
}

// Wait parks the task on q until another task wakes it with q.Wake or
// q.WakeAll.
func (f *Fiber) Wait(q *WaitQueue) {
	f.mustBeRunning("Wait")
	if q.s == nil {
		q.s = f.s
	} else if q.s != f.s {
		panic("fibers: WaitQueue used by two schedulers")
	}
	// Detect an overflow before the task is queued, so a panicking task never
	// stays on a wait queue.
	checkStack(f.t)
	q.q.Push(f.t)
	f.s.park()
}

// Spawn schedules fn as a new task on the same scheduler.
func (f *Fiber) Spawn(fn func(f *Fiber)) (TaskID, error) {
	f.mustBeRunning("Spawn")
	return f.s.Spawn(fn)
}

// Alloca returns n bytes of memory on the task's own stack. The memory
// survives Yield and Wait and is discarded when the task returns. Requesting
// more than the stack has left panics with "task stack overflow".
func (f *Fiber) Alloca(n int) []byte {
	f.mustBeRunning("Alloca")
	if n < 0 {
		panic("fibers: negative Alloca size")
	}
	return f.t.Stack().Alloca(uintptr(n))
}

// StackFree returns the number of bytes Alloca can still hand out.
func (f *Fiber) StackFree() int {
	f.mustBeRunning("StackFree")
	return int(f.t.Stack().Free())
}

// StackUsed returns the number of bytes in use on the task's stack.
func (f *Fiber) StackUsed() int {
	f.mustBeRunning("StackUsed")
	return int(f.t.Stack().Used())
}

// mustBeRunning aborts when the fiber is not the running task. Calling into
// the scheduler from anywhere else breaks its invariants.
func (f *Fiber) mustBeRunning(op string) {
	if f.t.Generation != f.gen || f.s.tasks[f.s.current] != f.t {
		panic("fibers: " + op + " called from a task that is not running")
	}
}
