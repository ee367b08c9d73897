package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacity is returned by Spawn when every task slot is in use and the
	// arena may not grow.
	ErrCapacity = errors.New("fibers: no task slot available")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fibers: scheduler closed")

	// ErrBusy is returned by Close while tasks may still run.
	ErrBusy = errors.New("fibers: tasks still live")

	// ErrDeadlock is returned by Run when tasks remain parked but none can
	// run anymore.
	ErrDeadlock = errors.New("fibers: all tasks are asleep")
)

// PanicError reports a task whose function panicked.
type PanicError struct {
	Task  TaskID
	Value any

	// Stack trace of the task at the time of the panic.
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fibers: task %d panicked: %v", e.Task, e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
