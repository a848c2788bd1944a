package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/evaafi/merkle-oracles-pub/pkg/api"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

// NewRunCmd returns the command that runs the signing loop.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the signing loop and publish commitments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOracle(cmd.Context())
		},
	}
}

func runOracle(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("Starting merkle-oracle", "version", version.Version, "oracle_id", cfg.Oracle.ID)

	if cfg.Metrics.Enabled {
		metrics.Init()
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	// Setup graceful shutdown
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Notifications outlive the tick context so shutdown can drain them.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go a.dispatcher.Run(dispatchCtx)

	var publishers []pipeline.Publisher
	var server *api.Server
	errChan := make(chan error, 2)

	if cfg.API.Enabled {
		var hub *api.WebSocketHub
		if cfg.API.WebSocket {
			hub = api.NewWebSocketHub(logger)
		}
		server = api.NewServer(cfg.API.Addr, cfg.API.Timeout.ToDuration(), hub, logger)
		publishers = append(publishers, server)
		go func() {
			if err := server.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	runner := pipeline.NewRunner(a.pipeline, cfg.Tick.Interval.ToDuration(), publishers...)
	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err = <-errChan:
		logger.Error("Component failed", "error", err)
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		if stopErr := server.Stop(shutdownCtx); stopErr != nil {
			logger.Error("Failed to stop HTTP server", "error", stopErr)
		}
	}
	a.close(shutdownCtx)

	logger.Info("Shutdown complete")
	return err
}
