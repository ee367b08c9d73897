package task

import (
	"errors"
	"fmt"
	"unsafe"
)

const (
	// StackAlign is the alignment of every saved stack pointer.
	StackAlign = 16

	// StackCanary is stored in the lowest usable word of every stack. When it
	// is overwritten, the task has run past the end of its stack.
	StackCanary = uintptr(uint64(0x670c1333b83bf575) & uint64(^uintptr(0)))

	// MinStackSize is the smallest usable stack that Allocate hands out.
	MinStackSize = 4096

	// MaxStackSize is the largest stack Allocate accepts.
	MaxStackSize = ^uintptr(0) >> 2

	wordSize = unsafe.Sizeof(uintptr(0))

	// Space below the stack pointer that Alloca leaves alone: the canary and
	// the resume word pushed by Switch.
	switchReserve = 2 * wordSize
)

// ErrAllocation is returned when the memory for a stack cannot be obtained.
var ErrAllocation = errors.New("task: stack allocation failed")

// Stack is a fixed-size memory region used as the call stack of one task.
// Stacks grow downward: the first frame is written just below Top.
type Stack struct {
	// Whole mapping, including the guard region below the usable memory.
	mem []byte

	// Address of mem[0].
	base uintptr

	// Lowest usable address. The canary lives here.
	bottom uintptr

	// Highest usable address, aligned down to StackAlign.
	top uintptr

	// Current stack pointer of the owning task. Moved by Prepare, Switch and
	// Alloca only.
	sp uintptr
}

// Allocate reserves a zeroed, non-executable stack of at least size usable
// bytes.
func Allocate(size uintptr) (*Stack, error) {
	if size < MinStackSize {
		size = MinStackSize
	}
	if size > MaxStackSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the maximum stack size", ErrAllocation, size)
	}
	mem, guard, err := allocStack(size)
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %v", ErrAllocation, size, err)
	}
	s := &Stack{
		mem:  mem,
		base: uintptr(unsafe.Pointer(&mem[0])),
	}
	s.bottom = alignUp(s.base+guard, StackAlign)
	s.top = alignDown(s.base+uintptr(len(mem)), StackAlign)
	s.Reset()
	return s, nil
}

// Release returns the stack memory to the system. The stack must not be used
// afterwards. Releasing a stack twice is a no-op.
func (s *Stack) Release() error {
	if s.mem == nil {
		return nil
	}
	mem := s.mem
	s.mem = nil
	s.base, s.bottom, s.top, s.sp = 0, 0, 0, 0
	return freeStack(mem)
}

// Reset discards every frame on the stack and rewrites the canary. Memory
// contents above the canary are left as they are.
func (s *Stack) Reset() {
	s.sp = s.top
	*s.word(s.bottom) = StackCanary
}

// Top returns the highest usable address of the stack (exclusive).
func (s *Stack) Top() uintptr {
	return s.top
}

// Bottom returns the lowest usable address of the stack, where the canary is
// stored.
func (s *Stack) Bottom() uintptr {
	return s.bottom
}

// Size returns the number of usable bytes between the canary and the top.
func (s *Stack) Size() uintptr {
	return s.top - s.bottom - wordSize
}

// Mapped returns the total amount of memory reserved for this stack,
// including the guard region.
func (s *Stack) Mapped() uintptr {
	return uintptr(len(s.mem))
}

// SP returns the current stack pointer.
func (s *Stack) SP() uintptr {
	return s.sp
}

// Used returns the number of bytes currently in use on the stack.
func (s *Stack) Used() uintptr {
	return s.top - s.sp
}

// CheckCanary reports whether the canary at the bottom of the stack is still
// intact.
func (s *Stack) CheckCanary() bool {
	return *s.word(s.bottom) == StackCanary
}

// Free returns the number of bytes Alloca can still hand out. One word above
// the canary stays reserved for the return word of the next Switch.
func (s *Stack) Free() uintptr {
	if s.sp < s.bottom+switchReserve {
		return 0
	}
	return alignDown(s.sp-s.bottom-switchReserve, StackAlign)
}

// Suspendable reports whether the stack can take the return word of a
// Switch: the canary is intact and the word above it is free.
func (s *Stack) Suspendable() bool {
	return s.CheckCanary() && s.sp >= s.bottom+switchReserve
}

// Alloca reserves n bytes of frame memory below the current stack pointer and
// returns them. The memory stays valid until the task finishes; it survives
// every switch in between.
func (s *Stack) Alloca(n uintptr) []byte {
	n = alignUp(n, StackAlign)
	if s.sp < s.bottom+switchReserve || n > s.sp-s.bottom-switchReserve {
		runtimePanic("task stack overflow")
	}
	s.sp -= n
	off := s.sp - s.base
	return s.mem[off : off+n : off+n]
}

// push stores a word just below the stack pointer.
func (s *Stack) push(w uintptr) {
	if s.sp-wordSize < s.bottom+wordSize {
		runtimePanic("task stack overflow")
	}
	s.sp -= wordSize
	*s.word(s.sp) = w
}

// pop removes the word at the stack pointer.
func (s *Stack) pop() uintptr {
	w := *s.word(s.sp)
	s.sp += wordSize
	return w
}

// peek returns the word at the stack pointer without removing it.
func (s *Stack) peek() uintptr {
	return *s.word(s.sp)
}

// word returns a pointer to the word at addr, which must lie within the
// usable part of the stack.
func (s *Stack) word(addr uintptr) *uintptr {
	if asserts && (addr < s.bottom || addr+wordSize > s.top || addr%wordSize != 0) {
		runtimePanic("task: stack access out of bounds")
	}
	return (*uintptr)(unsafe.Pointer(&s.mem[addr-s.base]))
}

func alignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

func alignDown(n, align uintptr) uintptr {
	return n &^ (align - 1)
}
