package task

import (
	"errors"
	"testing"
)

func TestAllocate(t *testing.T) {
	s, err := Allocate(32 * 1024)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	if s.Size() < 32*1024-wordSize {
		t.Errorf("Size returned %d, want at least %d", s.Size(), 32*1024-wordSize)
	}
	if s.Top()%StackAlign != 0 {
		t.Errorf("Top returned %#x, not aligned to %d", s.Top(), StackAlign)
	}
	if s.Bottom()%StackAlign != 0 {
		t.Errorf("Bottom returned %#x, not aligned to %d", s.Bottom(), StackAlign)
	}
	if s.SP() != s.Top() || s.Used() != 0 {
		t.Errorf("fresh stack has sp %#x, used %d; want sp at top %#x", s.SP(), s.Used(), s.Top())
	}
	if !s.CheckCanary() {
		t.Error("fresh stack has a broken canary")
	}
	if s.Mapped() < s.Top()-s.Bottom() {
		t.Errorf("Mapped returned %d, smaller than the usable region", s.Mapped())
	}

	// Memory is zeroed.
	buf := s.Alloca(256)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d of a fresh stack is %#x, want 0", i, b)
		}
	}
}

func TestAllocateRoundsUpSmallSizes(t *testing.T) {
	s, err := Allocate(1)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()
	if s.Size() < MinStackSize-wordSize {
		t.Errorf("Size returned %d, want at least %d", s.Size(), MinStackSize-wordSize)
	}
}

func TestAllocateHugeFails(t *testing.T) {
	s, err := Allocate(MaxStackSize + 1)
	if err == nil {
		s.Release()
		t.Fatal("Allocate of an impossible size succeeded")
	}
	if !errors.Is(err, ErrAllocation) {
		t.Errorf("Allocate returned %v, want an error wrapping ErrAllocation", err)
	}
}

func TestAlloca(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	a := s.Alloca(10)
	if len(a) != 16 {
		t.Errorf("Alloca(10) returned %d bytes, want 16", len(a))
	}
	b := s.Alloca(32)
	copy(a, "0123456789abcdef")
	copy(b, "ffffffffffffffffffffffffffffffff")
	if string(a) != "0123456789abcdef" {
		t.Errorf("neighbouring allocations overlap: %q", a)
	}
	if s.Used() != 48 {
		t.Errorf("Used returned %d, want 48", s.Used())
	}

	s.Reset()
	if s.Used() != 0 {
		t.Errorf("Used after Reset returned %d, want 0", s.Used())
	}
}

func TestAllocaOverflow(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	defer func() {
		if r := recover(); r != "task stack overflow" {
			t.Errorf("Alloca past the end panicked with %v, want task stack overflow", r)
		}
		if !s.CheckCanary() {
			t.Error("overflowing Alloca damaged the canary")
		}
	}()
	s.Alloca(s.Size() + 1)
}

func TestCanary(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	*s.word(s.Bottom()) = 0
	if s.CheckCanary() {
		t.Error("CheckCanary returned true for an overwritten canary")
	}
	s.Reset()
	if !s.CheckCanary() {
		t.Error("Reset did not restore the canary")
	}
}

func TestReleaseTwice(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("Release returned error: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("second Release returned error: %v", err)
	}
}

func TestAllocaLeavesRoomForSwitch(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	free := s.Free()
	if free == 0 || free%StackAlign != 0 {
		t.Fatalf("Free returned %d, want a non-zero multiple of %d", free, StackAlign)
	}
	s.Alloca(free)
	if s.Free() != 0 {
		t.Errorf("Free after taking everything returned %d, want 0", s.Free())
	}
	if !s.Suspendable() {
		t.Fatal("stack filled by Alloca is not suspendable")
	}
	s.push(resumePC)
	if !s.CheckCanary() {
		t.Error("pushing the resume word damaged the canary")
	}
	if s.pop() != resumePC {
		t.Error("resume word did not survive")
	}

	defer func() {
		if r := recover(); r != "task stack overflow" {
			t.Errorf("Alloca on a full stack panicked with %v, want task stack overflow", r)
		}
	}()
	s.Alloca(1)
}

func TestSuspendable(t *testing.T) {
	s, err := Allocate(MinStackSize)
	if err != nil {
		t.Fatalf("Allocate returned error: %v", err)
	}
	defer s.Release()

	if !s.Suspendable() {
		t.Error("fresh stack is not suspendable")
	}
	*s.word(s.Bottom()) = 0
	if s.Suspendable() {
		t.Error("stack with a broken canary is suspendable")
	}
}
