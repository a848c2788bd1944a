package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
)

// NewSignOnceCmd returns the command that runs a single tick.
func NewSignOnceCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sign-once",
		Short: "Run one tick and print the signed commitment as JSON",
		Long: `Fetches and verifies every enabled source once, aggregates, derives the
liquid staking prices and prints the resulting DataToPush document to stdout.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
				cfg.Logging.Output = "stderr"
			}
			logger, err := initLogger(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, cancel := context.WithTimeout(parent, timeout)
			defer cancel()

			dispatchCtx, stopDispatch := context.WithCancel(context.Background())
			defer stopDispatch()
			go a.dispatcher.Run(dispatchCtx)

			_, res, tickErr := a.pipeline.Tick(ctx, pipeline.TickState{})

			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			a.close(closeCtx)

			if tickErr != nil {
				return fmt.Errorf("tick failed: %w", tickErr)
			}

			out, err := json.MarshalIndent(res.Data, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Maximum duration of the tick")
	return cmd
}
