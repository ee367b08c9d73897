package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// DefaultScript is run when no script is given.
const DefaultScript = "A:2 B:2 C:2"

// step is one task of a run script: a name to print and the number of times
// the task yields.
type step struct {
	Name   string
	Yields int

	// Panic makes the task panic after its last yield.
	Panic bool
}

// parseScript splits a script like `A:2 "slow task":5 C:1!` into its steps. A
// step without a count yields zero times; a trailing "!" makes it panic.
func parseScript(script string) ([]step, error) {
	words, err := shlex.Split(script)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("parse script: no tasks")
	}
	steps := make([]step, 0, len(words))
	for _, w := range words {
		name, count, found := strings.Cut(w, ":")
		if name == "" {
			return nil, fmt.Errorf("parse script: %q has no task name", w)
		}
		st := step{Name: name}
		if strings.HasSuffix(count, "!") {
			st.Panic = true
			count = strings.TrimSuffix(count, "!")
		}
		if found && count != "" {
			n, err := strconv.Atoi(count)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("parse script: %q: yield count must be a non-negative integer", w)
			}
			st.Yields = n
		}
		steps = append(steps, st)
	}
	return steps, nil
}
