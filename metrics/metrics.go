// Package metrics describes and reads the counters kept by a fiber scheduler.
//
// The interface mirrors runtime/metrics: callers list the samples they want
// by name and Read fills in their values.
package metrics

// Description describes a metric.
type Description struct {
	Name        string
	Description string
	Kind        ValueKind
	Cumulative  bool
}

var descriptions = []Description{
	{Name: "/fibers/tasks/spawned:tasks", Description: "Tasks spawned since the scheduler was created.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/tasks/completed:tasks", Description: "Tasks whose function returned or panicked.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/tasks/panicked:tasks", Description: "Tasks whose function panicked.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/tasks/live:tasks", Description: "Tasks that are ready, running or parked.", Kind: KindUint64},
	{Name: "/fibers/sched/switches:switches", Description: "Context switches, including those into and out of the main context.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/sched/yields:calls", Description: "Yield calls made by tasks.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/sched/parks:calls", Description: "Times a task parked on a wait queue.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/sched/wakes:calls", Description: "Parked tasks made ready again.", Kind: KindUint64, Cumulative: true},
	{Name: "/fibers/stacks/allocated:stacks", Description: "Task stacks currently allocated.", Kind: KindUint64},
	{Name: "/fibers/stacks/mapped:bytes", Description: "Memory reserved for task stacks, including guard pages.", Kind: KindUint64},
}

// All returns a slice containing metric descriptions for all supported
// metrics.
func All() []Description {
	return append([]Description(nil), descriptions...)
}

// Counters is a snapshot of the counters of one scheduler.
type Counters struct {
	Spawned         uint64
	Completed       uint64
	Panicked        uint64
	Live            uint64
	Switches        uint64
	Yields          uint64
	Parks           uint64
	Wakes           uint64
	StacksAllocated uint64
	StackBytes      uint64
}

// Sample captures a single metric sample.
type Sample struct {
	Name  string
	Value Value
}

// Read populates each Value field in the given slice of metric samples from
// c. Unknown names get a value of kind KindBad.
func Read(c Counters, m []Sample) {
	for i := range m {
		m[i].Value = c.value(m[i].Name)
	}
}

func (c Counters) value(name string) Value {
	var n uint64
	switch name {
	case "/fibers/tasks/spawned:tasks":
		n = c.Spawned
	case "/fibers/tasks/completed:tasks":
		n = c.Completed
	case "/fibers/tasks/panicked:tasks":
		n = c.Panicked
	case "/fibers/tasks/live:tasks":
		n = c.Live
	case "/fibers/sched/switches:switches":
		n = c.Switches
	case "/fibers/sched/yields:calls":
		n = c.Yields
	case "/fibers/sched/parks:calls":
		n = c.Parks
	case "/fibers/sched/wakes:calls":
		n = c.Wakes
	case "/fibers/stacks/allocated:stacks":
		n = c.StacksAllocated
	case "/fibers/stacks/mapped:bytes":
		n = c.StackBytes
	default:
		return Value{}
	}
	return Value{kind: KindUint64, scalar: n}
}

// Value represents a metric value returned by Read.
type Value struct {
	kind   ValueKind
	scalar uint64
}

// Kind returns the tag representing the kind of value this is.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Uint64 returns the internal uint64 value for the metric.
//
// If v.Kind() != KindUint64, this method panics.
func (v Value) Uint64() uint64 {
	if v.kind != KindUint64 {
		panic("called Uint64 on non-uint64 metric value")
	}
	return v.scalar
}

// ValueKind is a tag for a metric Value which indicates its type.
type ValueKind int

const (
	KindBad ValueKind = iota
	KindUint64
)
