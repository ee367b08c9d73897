package task

import "reflect"

// Return words. Each names the code a suspended context continues in when it
// is switched into: the address of the function that will run.
var (
	// launchPC starts a prepared context in the trampoline.
	launchPC uintptr

	// exitPC sits above the launch word. The trampoline returns through it
	// after the entry function finished.
	exitPC uintptr

	// resumePC continues a context right after its last Switch call.
	resumePC uintptr
)

func init() {
	launchPC = funcPC(launch)
	exitPC = funcPC(finish)
	resumePC = funcPC(Switch)
}

// Context is the saved state of a task that is not running.
//
// A goroutine backs every context that has been started, and the Go runtime
// keeps that goroutine's registers while it is parked on the pause
// semaphore. The context itself only holds what the scheduler needs to
// resume it: the stack, the saved stack pointer and the entry/exit hooks of
// the trampoline.
type Context struct {
	// Stack of the task, or nil for the main context.
	stack *Stack

	// Saved stack pointer. Only meaningful while the context is suspended.
	sp uintptr

	// Entry function, run by the trampoline on the first switch-in.
	entry func()

	// Called by the trampoline after entry returned. It must end with Exit.
	exit func(recovered any)

	// Semaphore to pause/resume the backing goroutine. Holds at most one
	// token.
	pauseSem chan struct{}
}

// MainContext returns a context for the caller's own execution. It has no
// stack and is always resumable.
func MainContext() *Context {
	return &Context{pauseSem: make(chan struct{}, 1)}
}

// Prepare sets up ctx so that the first Switch into it runs entry on stack s.
// When entry returns, exit is called with the recovered panic value, if any.
//
// The top of the stack is laid out as if the trampoline had been called
// normally and was just about to return into itself:
//
//	top-8:  exitPC    return address of the trampoline
//	top-16: launchPC  return address of the Switch that resumes it  <- sp
//
// While a task runs its stack pointer sits one word below an aligned
// address, like at the entry of a called function. Every Switch pushes one
// return word, so every saved stack pointer is aligned to StackAlign.
func Prepare(ctx *Context, s *Stack, entry func(), exit func(recovered any)) {
	s.Reset()
	s.push(exitPC)
	s.push(launchPC)
	ctx.stack = s
	ctx.sp = s.sp
	ctx.entry = entry
	ctx.exit = exit
	if ctx.pauseSem == nil {
		ctx.pauseSem = make(chan struct{}, 1)
	}
	// A context is only prepared while nothing can resume it, so a stale
	// token can't be left here. Drain it anyway in case one was.
	select {
	case <-ctx.pauseSem:
	default:
	}
	if asserts && ctx.sp%StackAlign != 0 {
		runtimePanic("task: misaligned initial stack pointer")
	}
}

// Switch saves the running context into from and resumes to. It returns when
// some other context switches back into from.
//
// This is the only place where execution moves between contexts. It never
// calls back into the scheduler.
func Switch(from, to *Context) {
	if s := from.stack; s != nil {
		// Check whether the canary (the lowest address of the stack) is still
		// valid. If it is not, a stack overflow has occurred.
		if !s.CheckCanary() {
			runtimePanic("task stack overflow")
		}
		s.push(resumePC)
		from.sp = s.sp
		if asserts && from.sp%StackAlign != 0 {
			runtimePanic("task: misaligned stack pointer at switch")
		}
	}

	to.resume()

	// Wait until resumed.
	<-from.pauseSem

	if s := from.stack; s != nil {
		if s.sp != from.sp || s.pop() != resumePC {
			runtimePanic("task: corrupted context")
		}
	}
}

// Exit hands the processor to to without saving the running context. The
// caller's execution must end right after this returns: it is never resumed.
func Exit(to *Context) {
	to.resume()
}

// SavedSP returns the stack pointer stored in ctx by the last Switch or
// Prepare. It is zero for the main context.
func (ctx *Context) SavedSP() uintptr {
	return ctx.sp
}

// Stack returns the stack the context runs on, or nil for the main context.
func (ctx *Context) Stack() *Stack {
	return ctx.stack
}

// resume transfers the processor to ctx by "returning" through the word on
// top of its stack.
func (ctx *Context) resume() {
	s := ctx.stack
	if s == nil {
		ctx.pauseSem <- struct{}{}
		return
	}
	if s.sp != ctx.sp {
		runtimePanic("task: corrupted context")
	}
	switch s.peek() {
	case launchPC:
		s.pop()
		go launch(ctx)
	case resumePC:
		// The resumed side pops its own word once it runs again.
		ctx.pauseSem <- struct{}{}
	default:
		runtimePanic("task: corrupted context")
	}
}

// launch is the trampoline: the first code that runs in a prepared context.
func launch(ctx *Context) {
	completed := false
	defer func() {
		var recovered any
		if !completed {
			// Either a panic or runtime.Goexit. recover() is nil for the
			// latter, which is then treated like a normal return.
			recovered = recover()
		}
		finish(ctx, recovered)
	}()
	ctx.entry()
	completed = true
}

// finish returns through the exit word and hands control to the exit hook.
func finish(ctx *Context, recovered any) {
	s := ctx.stack
	s.sp = s.top - wordSize
	if s.pop() != exitPC {
		runtimePanic("task: corrupted context")
	}
	ctx.entry = nil
	ctx.exit(recovered)
}

func funcPC(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
