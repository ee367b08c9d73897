// Package trace records the context switches of a scheduler, so a schedule
// can be printed or compared with another run.
package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/sigurn/crc16"

	"github.com/tinygo-org/fibers/scheduler"
)

var table = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Event is a single context switch.
type Event struct {
	From scheduler.TaskID
	To   scheduler.TaskID

	// Saved stack pointer the incoming task resumed at. Zero for the main
	// context.
	SP uintptr
}

func (e Event) String() string {
	return fmt.Sprintf("%s -> %s sp=%#x", name(e.From), name(e.To), e.SP)
}

func name(id scheduler.TaskID) string {
	if id == scheduler.Main {
		return "main"
	}
	return fmt.Sprintf("task %d", id)
}

// Recorder is a scheduler.Hook that keeps every switch in order.
// The zero value is ready to use.
type Recorder struct {
	events []Event
}

var _ scheduler.Hook = (*Recorder)(nil)

// OnSwitch records a switch.
func (r *Recorder) OnSwitch(from, to scheduler.TaskID, sp uintptr) {
	r.events = append(r.events, Event{From: from, To: to, SP: sp})
}

// Events returns the recorded switches. The slice must not be modified.
func (r *Recorder) Events() []Event {
	return r.events
}

// Reset drops all recorded switches.
func (r *Recorder) Reset() {
	r.events = r.events[:0]
}

// Fingerprint returns a CRC-16 over the order of the recorded switches. Two
// runs with the same schedule have the same fingerprint. Stack addresses
// differ between runs and are left out.
func (r *Recorder) Fingerprint() uint16 {
	buf := make([]byte, 0, 8*len(r.events))
	for _, e := range r.events {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.From))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.To))
	}
	return crc16.Checksum(buf, table)
}

// WriteTo writes one line per switch, followed by the fingerprint.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for i, e := range r.events {
		m, _ := fmt.Fprintf(bw, "%d: %s\n", i, e)
		n += int64(m)
	}
	m, _ := fmt.Fprintf(bw, "fingerprint %04x\n", r.Fingerprint())
	n += int64(m)
	return n, bw.Flush()
}

// WriteFile writes the trace to path. A lock file next to it keeps
// concurrent runs from interleaving their output.
func (r *Recorder) WriteFile(path string) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock trace file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write trace file: %w", err)
	}
	return f.Close()
}
