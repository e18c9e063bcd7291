package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cryptodash/internal/build"
)

// NewVersionCmd returns the "version" subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := build.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "cryptodash %s (%s)\n", build.String(), info.GoVersion)
		},
	}
}
