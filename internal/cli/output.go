package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// ANSI colors cycled through by task id.
var taskColors = []string{
	"\x1b[32m", // green
	"\x1b[33m", // yellow
	"\x1b[34m", // blue
	"\x1b[35m", // magenta
	"\x1b[36m", // cyan
	"\x1b[31m", // red
}

const colorReset = "\x1b[0m"

// colorWriter returns the writer task output goes to. Output is always
// written with color codes; they are stripped when color is off.
func colorWriter(out io.Writer, mode string) (io.Writer, error) {
	f, isFile := out.(*os.File)
	switch mode {
	case "auto":
		if isFile && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return colorable.NewColorable(f), nil
		}
		return colorable.NewNonColorable(out), nil
	case "always":
		if isFile {
			return colorable.NewColorable(f), nil
		}
		return out, nil
	case "never":
		return colorable.NewNonColorable(out), nil
	default:
		return nil, fmt.Errorf("unknown color mode %q (want auto, always or never)", mode)
	}
}

// printTask prints a line in the color of task id.
func printTask(w io.Writer, id uint32, line string) {
	fmt.Fprintf(w, "%s%s%s\n", taskColors[int(id)%len(taskColors)], line, colorReset)
}
