package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/chain"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/keystore"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
	"github.com/evaafi/merkle-oracles-pub/pkg/staking"
)

// app holds everything a command needs to run ticks.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	dispatcher *notify.Dispatcher
	signer     *keystore.Signer
	pipeline   *pipeline.Pipeline
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) (*logging.Logger, error) {
	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.SetGlobal(logger)
	return logger, nil
}

// newDispatcher builds the notification dispatcher. The log transport is
// always present so alerts are never lost silently.
func newDispatcher(cfg config.NotifyConfig, logger *logging.Logger) *notify.Dispatcher {
	client := &http.Client{Timeout: config.DefaultHTTPTimeout}
	transports := []notify.Transport{notify.LogTransport{Logger: logger}}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		transports = append(transports, notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.ChatID, client))
	}
	if cfg.Webhook.URL != "" {
		transports = append(transports, notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Headers, client))
	}

	return notify.NewDispatcher(notify.DispatcherConfig{
		Prefix:     cfg.Prefix,
		Transports: transports,
		RateLimit:  cfg.RateLimit,
		Burst:      cfg.Burst,
		QueueSize:  cfg.QueueSize,
		Logger:     logger,
	})
}

// newApp wires sources, chain access, staking derivation and the signer
// into a pipeline. The dispatcher must be started by the caller.
func newApp(cfg *config.Config, logger *logging.Logger) (*app, error) {
	signer, err := keystore.Load(cfg.Oracle)
	if err != nil {
		return nil, fmt.Errorf("failed to load oracle key: %w", err)
	}
	logger.Info("Oracle key loaded", "oracle_id", cfg.Oracle.ID, "public_key", signer.PublicKeyHex())

	dispatcher := newDispatcher(cfg.Notify, logger)

	verifiers, err := sources.CreateEnabled(&cfg.Sources, sources.Options{
		Logger:   logger,
		Notifier: dispatcher,
		Retry:    cfg.Sources.Retry,
		PriceTTL: cfg.Tick.PriceTTL.ToDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sources: %w", err)
	}
	for _, v := range verifiers {
		logger.Info("Source enabled", "source", v.Name())
	}

	executor, err := chain.NewFromConfig(cfg.Chain, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain executor: %w", err)
	}
	deriver, err := staking.NewDeriverFromConfig(executor, cfg.Staking, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create staking deriver: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		Verifiers:  verifiers,
		Aggregator: aggregator.NewMedianAggregator(logger),
		Deriver:    deriver,
		Signer:     signer,
		Notifier:   dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		signer:     signer,
		pipeline:   p,
	}, nil
}

// close releases verifier connections and drains pending notifications.
func (a *app) close(ctx context.Context) {
	if err := a.pipeline.Close(); err != nil {
		a.logger.Error("Failed to close sources", "error", err)
	}
	if err := a.dispatcher.Close(ctx); err != nil {
		a.logger.Error("Failed to drain notifications", "error", err)
	}
}
