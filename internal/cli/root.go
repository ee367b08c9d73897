// Package cli implements the fibers command line tool.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tinygo-org/fibers/config"
	"github.com/tinygo-org/fibers/internal/logging"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the fibers CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fibers",
		Short: "Cooperative task scheduler demo",
		Long:  "fibers runs cooperative tasks on their own stacks and shows how they interleave.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Default()
			if flagConfig != "" {
				var err error
				if cfg, err = config.Load(flagConfig); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") || cfg.Log.Level == "" {
				cfg.Log.Level = flagLogLevel
			}
			if flags.Changed("log-format") || cfg.Log.Format == "" {
				cfg.Log.Format = flagLogFormat
			}
			if flagDebug {
				cfg.Log.Level = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging and print stack traces of failed tasks")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return root
}
