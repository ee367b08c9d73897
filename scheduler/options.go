package scheduler

import (
	"log/slog"

	"github.com/tinygo-org/fibers/config"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStackSize sets the stack size of every task. Sizes below
// task.MinStackSize are rounded up.
func WithStackSize(n uintptr) Option {
	return func(s *Scheduler) {
		s.stackSize = n
	}
}

// WithMaxTasks bounds the number of live tasks, not counting the main
// context. Zero lets the arena grow without bound.
func WithMaxTasks(n int) Option {
	return func(s *Scheduler) {
		s.maxTasks = n
	}
}

// WithLogger sets the logger for spawn, finish and panic records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithHook installs a hook that is told about every context switch.
func WithHook(h Hook) Option {
	return func(s *Scheduler) {
		s.hook = h
	}
}

// WithConfig applies the stack size and task limit of cfg.
func WithConfig(cfg config.Config) Option {
	return func(s *Scheduler) {
		s.stackSize = uintptr(cfg.StackSize)
		s.maxTasks = cfg.MaxTasks
	}
}

// Hook observes context switches. It runs on the scheduler's processor just
// before control moves, so it must not yield or spawn.
type Hook interface {
	// OnSwitch is called before control moves from one task to another,
	// once the outgoing task's stack has been checked. sp is the saved
	// stack pointer the incoming task resumes at, or zero for the main
	// context. If OnSwitch panics while a task yields or waits, the switch
	// is abandoned and the panic ends that task.
	OnSwitch(from, to TaskID, sp uintptr)
}

// HookFunc adapts a function to a Hook.
type HookFunc func(from, to TaskID, sp uintptr)

// OnSwitch calls f(from, to, sp).
func (f HookFunc) OnSwitch(from, to TaskID, sp uintptr) {
	f(from, to, sp)
}
