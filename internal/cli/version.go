package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version of the fibers tool, set at link time with -ldflags "-X".
var Version = "0.1.0-dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fibers version %s %s/%s\n", Version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
