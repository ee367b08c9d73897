package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/inhies/go-bytesize"
	"github.com/spf13/cobra"

	"github.com/tinygo-org/fibers/diagnostics"
	"github.com/tinygo-org/fibers/internal/trace"
	"github.com/tinygo-org/fibers/metrics"
	"github.com/tinygo-org/fibers/scheduler"
)

// errRunFailed is returned after the failures of a run have been printed.
var errRunFailed = errors.New("run failed")

func newRunCmd() *cobra.Command {
	var (
		stackSize bytesize.ByteSize
		maxTasks  int
		color     string
		tracePath string
		stats     bool
	)

	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run a script of cooperative tasks",
		Long: `Run spawns one task per NAME:YIELDS item of the script. Every task prints
its name, then yields YIELDS times, printing its name again after each resume.

A trailing "!" (as in B:1!) makes the task panic after its last yield.
The script is split like a shell command line, so names may be quoted.
Without a script, "` + DefaultScript + `" is run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := DefaultScript
			if len(args) == 1 {
				script = args[0]
			}
			steps, err := parseScript(script)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("stack-size") {
				cfg.StackSize = stackSize
			}
			if cmd.Flags().Changed("max-tasks") {
				cfg.MaxTasks = maxTasks
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out, err := colorWriter(cmd.OutOrStdout(), color)
			if err != nil {
				return err
			}

			opts := []scheduler.Option{
				scheduler.WithConfig(cfg),
				scheduler.WithLogger(logger),
			}
			var rec *trace.Recorder
			if tracePath != "" {
				rec = &trace.Recorder{}
				opts = append(opts, scheduler.WithHook(rec))
			}

			s := scheduler.New(opts...)
			defer s.Close()

			for _, st := range steps {
				st := st
				if _, err := s.Spawn(func(f *scheduler.Fiber) {
					printTask(out, uint32(f.ID()), st.Name)
					for i := 0; i < st.Yields; i++ {
						f.Yield()
						printTask(out, uint32(f.ID()), st.Name)
					}
					if st.Panic {
						panic(st.Name + " failed")
					}
				}); err != nil {
					return fmt.Errorf("spawn %s: %w", st.Name, err)
				}
			}
			logger.Debug("running tasks", "tasks", len(steps), "stack_size", cfg.StackSize.String())

			// A panic stops Run early. Keep going so every task gets to
			// finish, and report all failures at the end.
			var errs []error
			for {
				err := s.Run()
				if err == nil {
					break
				}
				errs = append(errs, err)
				if errors.Is(err, scheduler.ErrDeadlock) {
					break
				}
			}
			runErr := errors.Join(errs...)

			if rec != nil {
				if err := rec.WriteFile(tracePath); err != nil {
					return err
				}
				logger.Info("trace written", "path", tracePath, "switches", len(rec.Events()), "fingerprint", fmt.Sprintf("%04x", rec.Fingerprint()))
			}
			if stats {
				printStats(cmd.OutOrStdout(), s.Counters())
			}
			if runErr != nil {
				diagnostics.CreateDiagnostics(runErr).WriteTo(cmd.ErrOrStderr(), flagDebug)
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().Var(sizeFlag{&stackSize}, "stack-size", "Stack size of every task, e.g. 64KB (default from config)")
	cmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "Maximum number of live tasks, 0 for no limit (default from config)")
	cmd.Flags().StringVar(&color, "color", "auto", "Color task output (auto, always, never)")
	cmd.Flags().StringVar(&tracePath, "trace", "", "Write the context switches to this file")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print scheduler metrics after the run")

	return cmd
}

// sizeFlag lets a flag take sizes with a unit, such as 64KB.
type sizeFlag struct {
	size *bytesize.ByteSize
}

func (f sizeFlag) String() string {
	if f.size == nil {
		return ""
	}
	return f.size.String()
}

func (f sizeFlag) Set(s string) error {
	v, err := bytesize.Parse(s)
	if err != nil {
		return err
	}
	*f.size = v
	return nil
}

func (f sizeFlag) Type() string {
	return "size"
}

func printStats(w io.Writer, c metrics.Counters) {
	descs := metrics.All()
	samples := make([]metrics.Sample, len(descs))
	for i, d := range descs {
		samples[i].Name = d.Name
	}
	metrics.Read(c, samples)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	for _, sample := range samples {
		fmt.Fprintf(tw, "%s\t%d\n", sample.Name, sample.Value.Uint64())
	}
	tw.Flush()
}
