package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Import sources to register them
	_ "github.com/evaafi/merkle-oracles-pub/pkg/sources/pyth"
	_ "github.com/evaafi/merkle-oracles-pub/pkg/sources/redstone"
	_ "github.com/evaafi/merkle-oracles-pub/pkg/sources/supra"
)

var configFile string

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd returns the merkle-oracle command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merkle-oracle",
		Short: "TON price oracle producing signed Merkle-provable commitments",
		Long: `merkle-oracle verifies Pyth, Redstone and Supra attestations, aggregates
them into consensus prices, derives liquid staking prices and signs a
TON cell commitment every tick.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "config/config.yaml", "Path to configuration file")

	cmd.AddCommand(
		NewRunCmd(),
		NewSignOnceCmd(),
		NewVerifierConfigCmd(),
		NewVersionCmd(),
	)

	return cmd
}
