package main

import (
	"fmt"
	"runtime"

	"github.com/czx-lab/garuda/garuda"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "gadgetctl %s\n", version)
			fmt.Fprintf(out, "  protocol: %s\n", garuda.ProtocolVersion)
			fmt.Fprintf(out, "  commit:   %s\n", commit)
			fmt.Fprintf(out, "  built:    %s\n", date)
			fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  os/arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
