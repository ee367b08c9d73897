// Package diagnostics formats the errors returned by a scheduler run and
// prints them in a consistent way.
package diagnostics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tinygo-org/fibers/scheduler"
)

// A single diagnostic.
type Diagnostic struct {
	Msg string

	// Stack trace of the task, if the error carried one.
	Stack []byte
}

// One or multiple errors of a particular task. Task is scheduler.Main for
// errors that belong to the run as a whole, like a deadlock.
type TaskDiagnostic struct {
	Task        scheduler.TaskID
	Diagnostics []Diagnostic
}

// Diagnostics of a whole run, sorted by task.
type ProgramDiagnostic []TaskDiagnostic

// CreateDiagnostics reads the underlying errors in the error object and creates
// a set of diagnostics that's sorted and can be readily printed.
func CreateDiagnostics(err error) ProgramDiagnostic {
	if err == nil {
		return nil
	}
	byTask := make(map[scheduler.TaskID]*TaskDiagnostic)
	for _, err := range flatten(err) {
		id, diag := createDiagnostic(err)
		td := byTask[id]
		if td == nil {
			td = &TaskDiagnostic{Task: id}
			byTask[id] = td
		}
		td.Diagnostics = append(td.Diagnostics, diag)
	}

	progDiag := make(ProgramDiagnostic, 0, len(byTask))
	for _, td := range byTask {
		progDiag = append(progDiag, *td)
	}
	sort.Slice(progDiag, func(i, j int) bool {
		return progDiag[i].Task < progDiag[j].Task
	})
	return progDiag
}

// flatten splits joined errors into their parts.
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var errs []error
		for _, err := range joined.Unwrap() {
			errs = append(errs, flatten(err)...)
		}
		return errs
	}
	return []error{err}
}

// Extract the task and message of a single error.
func createDiagnostic(err error) (scheduler.TaskID, Diagnostic) {
	var perr *scheduler.PanicError
	if errors.As(err, &perr) {
		return perr.Task, Diagnostic{
			Msg:   fmt.Sprintf("panic: %v", perr.Value),
			Stack: perr.Stack,
		}
	}
	return scheduler.Main, Diagnostic{Msg: err.Error()}
}

// Write program diagnostics to the given writer. Stack traces are only
// printed when stacks is set.
func (progDiag ProgramDiagnostic) WriteTo(w io.Writer, stacks bool) {
	for _, taskDiag := range progDiag {
		taskDiag.WriteTo(w, stacks)
	}
}

// Write the diagnostics of one task to the given writer.
func (taskDiag TaskDiagnostic) WriteTo(w io.Writer, stacks bool) {
	if taskDiag.Task != scheduler.Main {
		fmt.Fprintln(w, "# task", taskDiag.Task)
	}
	for _, diag := range taskDiag.Diagnostics {
		diag.WriteTo(w, stacks)
	}
}

// Write this diagnostic to the given writer.
func (diag Diagnostic) WriteTo(w io.Writer, stacks bool) {
	fmt.Fprintln(w, diag.Msg)
	if !stacks || len(diag.Stack) == 0 {
		return
	}
	// Indent the trace so it reads as part of the diagnostic.
	for _, line := range bytes.Split(bytes.TrimRight(diag.Stack, "\n"), []byte("\n")) {
		fmt.Fprintln(w, "\t"+strings.TrimRight(string(line), " "))
	}
}
