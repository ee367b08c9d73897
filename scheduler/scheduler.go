// Package scheduler runs cooperative tasks (fibers) on a single logical
// processor.
//
// Tasks are spawned with Spawn and driven by Run. A task keeps the processor
// until it calls Yield or Wait on its Fiber handle, or returns. Tasks are
// resumed in round-robin order of their slots, with the main context (the
// caller of Run) taking a turn after the last slot, so a fixed sequence of
// Spawn and Yield calls always produces the same interleaving.
//
// A Scheduler is not safe for concurrent use by multiple goroutines. It must
// only be used from its own tasks and from the goroutine that calls Run.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/tinygo-org/fibers/config"
	"github.com/tinygo-org/fibers/internal/logging"
	"github.com/tinygo-org/fibers/internal/task"
	"github.com/tinygo-org/fibers/metrics"
)

// TaskID identifies a task slot. Slot ids are reused after a task finishes.
type TaskID = task.ID

// Main is the id of the main context.
const Main TaskID = 0

// RunState is the scheduling state of a task slot.
type RunState = task.RunState

const (
	Available = task.RunStateAvailable
	Ready     = task.RunStateReady
	Running   = task.RunStateRunning
	Parked    = task.RunStateParked
	Suspended = task.RunStateSuspended
)

// Scheduler owns a set of task slots and switches between them.
type Scheduler struct {
	// Slot 0 is the main context.
	tasks []*task.Task

	// Available slots. Finished tasks are pushed here and reused first.
	free task.Pool

	// Index of the running slot.
	current int

	stackSize uintptr
	maxTasks  int
	logger    *slog.Logger
	hook      Hook

	counters metrics.Counters

	// Panics of tasks that Run has not reported yet.
	failures []error

	closed bool
}

// New creates a scheduler. The caller's own execution becomes the main
// context.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		tasks:     []*task.Task{task.NewMain()},
		stackSize: uintptr(config.DefaultStackSize),
		maxTasks:  config.DefaultMaxTasks,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn schedules fn to run as a new task and returns its slot. The task
// starts running on a later switch, never inside Spawn.
//
// Spawn may be called from the main context or from a running task.
func (s *Scheduler) Spawn(fn func(f *Fiber)) (TaskID, error) {
	if fn == nil {
		panic("fibers: Spawn of nil func")
	}
	if s.closed {
		return 0, ErrClosed
	}

	var t *task.Task
	if !s.free.Empty() {
		t = s.free.Pop()
	} else {
		if s.maxTasks > 0 && len(s.tasks)-1 >= s.maxTasks {
			return 0, fmt.Errorf("%w: limit of %d tasks reached", ErrCapacity, s.maxTasks)
		}
		t = task.New(TaskID(len(s.tasks)))
		s.tasks = append(s.tasks, t)
	}

	hadStack := t.Stack() != nil
	f := &Fiber{s: s, t: t}
	err := t.Start(s.stackSize, func() { fn(f) }, func(recovered any) { s.exit(t, recovered) })
	if err != nil {
		s.free.Push(t)
		return 0, fmt.Errorf("spawn task %d: %w", t.ID(), err)
	}
	f.gen = t.Generation

	if !hadStack {
		s.counters.StacksAllocated++
		s.counters.StackBytes += uint64(t.Stack().Mapped())
	}
	s.counters.Spawned++
	s.logger.Debug("task spawned", "task", t.ID(), "generation", f.gen)
	return t.ID(), nil
}

// Run drives all spawned tasks until none of them is ready anymore. It must be
// called from the main context.
//
// If a task panicked, Run returns a *PanicError (several are joined) as soon
// as control comes back to the main context. The other tasks stay scheduled
// and a later call to Run continues them. If tasks remain parked with nothing
// left to wake them, Run returns ErrDeadlock.
func (s *Scheduler) Run() error {
	if s.current != 0 {
		panic("fibers: Run called from inside a task")
	}
	if s.closed {
		return ErrClosed
	}
	for {
		if err := s.takeFailures(); err != nil {
			return err
		}
		if !s.yield() {
			break
		}
	}
	if n := s.count(Parked); n > 0 {
		return fmt.Errorf("%w: %d tasks parked", ErrDeadlock, n)
	}
	return nil
}

// Close releases the stacks of all task slots. It fails with ErrBusy while any
// task is ready or parked. Closing twice is a no-op.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	if s.current != 0 {
		panic("fibers: Close called from inside a task")
	}
	for _, t := range s.tasks[1:] {
		if t.RunState != Available {
			return fmt.Errorf("%w: task %d is %v", ErrBusy, t.ID(), t.RunState)
		}
	}
	var errs []error
	for _, t := range s.tasks[1:] {
		if t.Stack() == nil {
			continue
		}
		if err := t.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release stack of task %d: %w", t.ID(), err))
		}
	}
	s.counters.StacksAllocated = 0
	s.counters.StackBytes = 0
	s.closed = true
	s.logger.Debug("scheduler closed", "slots", len(s.tasks)-1)
	return errors.Join(errs...)
}

// Current returns the slot of the running task, or Main.
func (s *Scheduler) Current() TaskID {
	return TaskID(s.current)
}

// State returns the state of a task slot. It reports false for slots that were
// never created.
func (s *Scheduler) State(id TaskID) (RunState, bool) {
	if int(id) >= len(s.tasks) {
		return Available, false
	}
	return s.tasks[id].RunState, true
}

// Len returns the number of task slots created so far, not counting the main
// context.
func (s *Scheduler) Len() int {
	return len(s.tasks) - 1
}

// Counters returns a snapshot of the scheduler's counters, for use with
// metrics.Read.
func (s *Scheduler) Counters() metrics.Counters {
	c := s.counters
	c.Live = uint64(len(s.tasks) - 1 - s.count(Available))
	return c
}

// yield switches to the next eligible task after the current one. It reports
// false, without switching, when no other task is eligible.
func (s *Scheduler) yield() bool {
	next := s.next()
	if next < 0 {
		return false
	}
	cur := s.tasks[s.current]
	s.suspend(cur)
	s.switchTo(cur, next)
	return true
}

// park suspends the running task in the parked state. Some other task or the
// main context always takes over.
func (s *Scheduler) park() {
	cur := s.tasks[s.current]
	cur.RunState = Parked
	s.counters.Parks++
	s.switchTo(cur, s.next())
}

// exit is the completion logic of a task, called by the trampoline after the
// task's function returned. It never returns to the finished task.
func (s *Scheduler) exit(t *task.Task, recovered any) {
	if cur := s.tasks[s.current]; cur != t {
		// The task panicked inside a switch, after the incoming task had
		// been picked but before it got control. Undo that.
		s.suspend(cur)
		s.current = int(t.ID())
	}

	t.RunState = Available
	s.free.Push(t)
	s.counters.Completed++
	if recovered != nil {
		s.counters.Panicked++
		s.failures = append(s.failures, &PanicError{
			Task:  t.ID(),
			Value: recovered,
			Stack: debug.Stack(),
		})
		s.logger.Warn("task panicked", "task", t.ID(), "panic", recovered)
	}
	s.logger.Debug("task finished", "task", t.ID())

	// Main is always eligible here, as it is not current.
	next := s.tasks[s.next()]
	s.enter(t, next)
	task.Exit(next.Context())
}

// next returns the first eligible slot after the current one, wrapping
// around, or -1 if there is none.
func (s *Scheduler) next() int {
	n := len(s.tasks)
	for i := 1; i < n; i++ {
		pos := (s.current + i) % n
		if pos == 0 || s.tasks[pos].RunState == Ready {
			return pos
		}
	}
	return -1
}

// suspend marks the outgoing task as eligible to be resumed.
func (s *Scheduler) suspend(t *task.Task) {
	if t.ID() == Main {
		t.RunState = Suspended
	} else {
		t.RunState = Ready
	}
}

// enter makes slot next the running one. The caller must switch to it right
// after.
func (s *Scheduler) enter(from, to *task.Task) {
	to.RunState = Running
	s.current = int(to.ID())
	s.counters.Switches++
	if s.hook != nil {
		s.hook.OnSwitch(from.ID(), to.ID(), to.Context().SavedSP())
	}
}

func (s *Scheduler) switchTo(from *task.Task, next int) {
	checkStack(from)
	to := s.tasks[next]
	s.enter(from, to)
	task.Switch(from.Context(), to.Context())
}

// checkStack panics if t cannot be suspended because it overran its stack.
// It runs before any scheduling state changes, so the panic unwinds a task
// that is still current.
func checkStack(t *task.Task) {
	if st := t.Stack(); st != nil && !st.Suspendable() {
		panic("task stack overflow")
	}
}

func (s *Scheduler) count(state RunState) int {
	n := 0
	for _, t := range s.tasks[1:] {
		if t.RunState == state {
			n++
		}
	}
	return n
}

func (s *Scheduler) takeFailures() error {
	if len(s.failures) == 0 {
		return nil
	}
	errs := s.failures
	s.failures = nil
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}
