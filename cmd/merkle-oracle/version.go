package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

// NewVersionCmd returns the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.AgentString())
		},
	}
}
