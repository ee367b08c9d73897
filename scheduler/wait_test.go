package scheduler_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/tinygo-org/fibers/scheduler"
)

func TestWaitQueueWake(t *testing.T) {
	s := newScheduler(t)
	var q scheduler.WaitQueue
	var out []string
	var items []int

	mustSpawn(t, s, func(f *scheduler.Fiber) {
		for len(items) == 0 {
			out = append(out, "consumer waits")
			f.Wait(&q)
		}
		out = append(out, "consumer got item")
		items = items[1:]
	})
	mustSpawn(t, s, func(f *scheduler.Fiber) {
		f.Yield()
		items = append(items, 1)
		out = append(out, "producer wakes")
		if !q.Wake() {
			t.Error("Wake found no waiting task")
		}
	})
	if err := s.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []string{"consumer waits", "producer wakes", "consumer got item"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("order was %v, want %v", out, want)
	}
	if c := s.Counters(); c.Parks != 1 || c.Wakes != 1 {
		t.Errorf("counters: %d parks, %d wakes; want 1 and 1", c.Parks, c.Wakes)
	}
}

func TestWaitQueueFIFO(t *testing.T) {
	s := newScheduler(t)
	var q scheduler.WaitQueue
	var woken []scheduler.TaskID
	for i := 0; i < 4; i++ {
		mustSpawn(t, s, func(f *scheduler.Fiber) {
			f.Wait(&q)
			woken = append(woken, f.ID())
		})
	}
	mustSpawn(t, s, func(f *scheduler.Fiber) {
		if q.Len() != 4 {
			t.Errorf("Len returned %d, want 4", q.Len())
		}
		if n := q.WakeAll(); n != 4 {
			t.Errorf("WakeAll returned %d, want 4", n)
		}
	})
	if err := s.Run(); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	want := []scheduler.TaskID{1, 2, 3, 4}
	if !reflect.DeepEqual(woken, want) {
		t.Errorf("tasks woke in order %v, want %v", woken, want)
	}
	if q.Wake() {
		t.Error("Wake on an empty queue reported true")
	}
}

func TestWakeFromMain(t *testing.T) {
	s := newScheduler(t)
	var q scheduler.WaitQueue
	done := false
	mustSpawn(t, s, func(f *scheduler.Fiber) {
		f.Wait(&q)
		done = true
	})
	if err := s.Run(); !errors.Is(err, scheduler.ErrDeadlock) {
		t.Fatalf("Run returned %v, want ErrDeadlock", err)
	}
	if st, _ := s.State(1); st != scheduler.Parked {
		t.Errorf("waiting task is %v, want parked", st)
	}
	q.Wake()
	if err := s.Run(); err != nil {
		t.Fatalf("Run after Wake returned error: %v", err)
	}
	if !done {
		t.Error("woken task did not finish")
	}
}

func TestDeadlock(t *testing.T) {
	s := newScheduler(t)
	var q scheduler.WaitQueue
	mustSpawn(t, s, func(f *scheduler.Fiber) { f.Wait(&q) })
	mustSpawn(t, s, func(f *scheduler.Fiber) { f.Wait(&q) })
	err := s.Run()
	if !errors.Is(err, scheduler.ErrDeadlock) {
		t.Fatalf("Run returned %v, want ErrDeadlock", err)
	}
	if err := s.Close(); !errors.Is(err, scheduler.ErrBusy) {
		t.Errorf("Close with parked tasks returned %v, want ErrBusy", err)
	}
	// Let the tasks finish so the cleanup can release their stacks.
	q.WakeAll()
	if err := s.Run(); err != nil {
		t.Errorf("Run after WakeAll returned error: %v", err)
	}
}

func TestWaitQueueOtherScheduler(t *testing.T) {
	var q scheduler.WaitQueue
	s1 := newScheduler(t)
	mustSpawn(t, s1, func(f *scheduler.Fiber) { f.Wait(&q) })
	if err := s1.Run(); !errors.Is(err, scheduler.ErrDeadlock) {
		t.Fatalf("Run returned %v, want ErrDeadlock", err)
	}

	s2 := newScheduler(t)
	mustSpawn(t, s2, func(f *scheduler.Fiber) { f.Wait(&q) })
	var perr *scheduler.PanicError
	if err := s2.Run(); !errors.As(err, &perr) {
		t.Errorf("Run returned %v, want a panic for the shared queue", err)
	}

	q.Wake()
	if err := s1.Run(); err != nil {
		t.Errorf("Run after Wake returned error: %v", err)
	}
}
