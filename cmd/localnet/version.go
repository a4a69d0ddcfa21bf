package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg := version
			if info, ok := debug.ReadBuildInfo(); ok {
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" {
						msg += ", commit=" + s.Value
					}
				}
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}
}
