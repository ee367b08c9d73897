package diagnostics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tinygo-org/fibers/scheduler"
)

func TestCreateDiagnostics(t *testing.T) {
	if diags := CreateDiagnostics(nil); diags != nil {
		t.Errorf("CreateDiagnostics(nil) returned %v", diags)
	}

	err := errors.Join(
		&scheduler.PanicError{Task: 3, Value: "three", Stack: []byte("goroutine 7 [running]:\nmain.f()\n")},
		fmt.Errorf("run: %w", scheduler.ErrDeadlock),
		&scheduler.PanicError{Task: 1, Value: errors.New("one")},
		errors.Join(&scheduler.PanicError{Task: 3, Value: "again"}),
	)
	diags := CreateDiagnostics(err)
	if len(diags) != 3 {
		t.Fatalf("got %d task diagnostics, want 3", len(diags))
	}
	for i, want := range []scheduler.TaskID{scheduler.Main, 1, 3} {
		if diags[i].Task != want {
			t.Errorf("diagnostic %d is for task %d, want %d", i, diags[i].Task, want)
		}
	}
	if n := len(diags[2].Diagnostics); n != 2 {
		t.Errorf("task 3 has %d diagnostics, want 2", n)
	}
	if msg := diags[1].Diagnostics[0].Msg; msg != "panic: one" {
		t.Errorf("task 1 message is %q", msg)
	}
}

func TestWriteTo(t *testing.T) {
	err := errors.Join(
		&scheduler.PanicError{Task: 2, Value: "boom", Stack: []byte("goroutine 7 [running]:\nmain.f()\n")},
		scheduler.ErrDeadlock,
	)
	diags := CreateDiagnostics(err)

	var buf bytes.Buffer
	diags.WriteTo(&buf, false)
	want := "fibers: all tasks are asleep\n# task 2\npanic: boom\n"
	if buf.String() != want {
		t.Errorf("WriteTo wrote %q, want %q", buf.String(), want)
	}

	buf.Reset()
	diags.WriteTo(&buf, true)
	if !strings.Contains(buf.String(), "panic: boom\n\tgoroutine 7 [running]:\n\tmain.f()\n") {
		t.Errorf("WriteTo with stacks wrote %q", buf.String())
	}
}

func TestFromRun(t *testing.T) {
	s := scheduler.New()
	defer s.Close()
	for i := 0; i < 2; i++ {
		s.Spawn(func(f *scheduler.Fiber) {
			panic(fmt.Sprintf("task %d failed", f.ID()))
		})
	}
	diags := CreateDiagnostics(s.Run())
	if len(diags) != 2 || diags[0].Task != 1 || diags[1].Task != 2 {
		t.Fatalf("unexpected diagnostics %+v", diags)
	}
	if msg := diags[1].Diagnostics[0].Msg; msg != "panic: task 2 failed" {
		t.Errorf("task 2 message is %q", msg)
	}
	if len(diags[0].Diagnostics[0].Stack) == 0 {
		t.Error("panic diagnostic has no stack trace")
	}
}
