// Package task implements the low-level parts of the fiber runtime: task
// records, their stacks, and the context switch between them.
//
// Every started task is backed by a goroutine, so tasks may run on different
// OS threads over time, but only one of them holds the processor at once. The
// return words on a task stack only tell Switch whether to launch or resume
// the context; they are never jumped to.
package task

// ID identifies a task slot. Slot 0 is the main context.
type ID uint32

// RunState is the scheduling state of a task record.
type RunState uint8

const (
	// RunStateAvailable means the slot is unused or its task finished. It can
	// receive new work.
	RunStateAvailable RunState = iota

	// RunStateReady means the task was spawned or yielded and may be
	// switched into.
	RunStateReady

	// RunStateRunning means the task is executing. At most one record is in
	// this state.
	RunStateRunning

	// RunStateParked means the task waits on a queue until it is woken.
	RunStateParked

	// RunStateSuspended is used only by the main record while another task
	// runs. Main is always eligible to be returned to.
	RunStateSuspended
)

func (s RunState) String() string {
	switch s {
	case RunStateAvailable:
		return "available"
	case RunStateReady:
		return "ready"
	case RunStateRunning:
		return "running"
	case RunStateParked:
		return "parked"
	case RunStateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Task is a task record: the unit the scheduler operates on.
type Task struct {
	// Next is a field which can be used to make a linked list of tasks.
	Next *Task

	// RunState is the scheduling state of this record.
	RunState RunState

	// Generation is incremented every time a new task is prepared in this
	// slot, so handles to an earlier task can be told apart.
	Generation uint64

	id    ID
	stack *Stack
	ctx   Context
}

// New returns an available task record for slot id. The record has no stack
// yet.
func New(id ID) *Task {
	return &Task{id: id}
}

// NewMain returns the record for the main context, which is running.
func NewMain() *Task {
	t := &Task{RunState: RunStateRunning}
	t.ctx.pauseSem = make(chan struct{}, 1)
	return t
}

// ID returns the slot of the task.
func (t *Task) ID() ID {
	return t.id
}

// Stack returns the stack of the task, or nil if none was allocated.
func (t *Task) Stack() *Stack {
	return t.stack
}

// Context returns the saved execution context of the task.
func (t *Task) Context() *Context {
	return &t.ctx
}

// Start prepares the task to run entry on its own stack, allocating a stack
// of stackSize bytes if the slot has none yet. An existing stack is reused.
// The task is left Ready.
func (t *Task) Start(stackSize uintptr, entry func(), exit func(recovered any)) error {
	if t.stack == nil {
		s, err := Allocate(stackSize)
		if err != nil {
			return err
		}
		t.stack = s
	}
	t.Generation++
	Prepare(&t.ctx, t.stack, entry, exit)
	t.RunState = RunStateReady
	return nil
}

// Release frees the stack of the task. The task must be available.
func (t *Task) Release() error {
	if t.stack == nil {
		return nil
	}
	if t.RunState != RunStateAvailable {
		runtimePanic("task: releasing the stack of a live task")
	}
	s := t.stack
	t.stack = nil
	return s.Release()
}

func runtimePanic(msg string) {
	panic(msg)
}
