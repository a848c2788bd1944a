package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xssnick/tonutils-go/address"

	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/retry"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// MethodCaller runs a read-only get method and returns its stack.
type MethodCaller interface {
	RunGetMethod(ctx context.Context, addr *address.Address, method string) (*Stack, error)
}

// Endpoint is a named MethodCaller.
type Endpoint struct {
	Name   string
	Caller MethodCaller
}

// FailoverExecutor runs calls against its endpoints in a fixed order and
// returns the first success. The whole pass is retried under policy.
type FailoverExecutor struct {
	endpoints []Endpoint
	policy    retry.Policy
	logger    *logging.Logger
}

// Ensure FailoverExecutor implements MethodCaller.
var _ MethodCaller = (*FailoverExecutor)(nil)

// NewFailoverExecutor creates an executor over endpoints.
func NewFailoverExecutor(endpoints []Endpoint, policy retry.Policy, logger *logging.Logger) (*FailoverExecutor, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &FailoverExecutor{
		endpoints: endpoints,
		policy:    policy,
		logger:    logger.With("component", "chain"),
	}, nil
}

// NewFromConfig builds the executor and one caller per configured endpoint.
func NewFromConfig(cfg config.ChainConfig, logger *logging.Logger) (*FailoverExecutor, error) {
	timeout := cfg.Timeout.ToDuration()
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	client := &http.Client{Timeout: timeout}

	endpoints := make([]Endpoint, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		var caller MethodCaller
		switch ep.Type {
		case "", config.EndpointToncenter:
			caller = NewToncenter(ep.URL, ep.APIKey, client)
		case config.EndpointLiteserver:
			caller = NewLiteserver(ep.URL)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownEndpointType, ep.Type)
		}
		endpoints = append(endpoints, Endpoint{Name: ep.Name, Caller: caller})
	}

	policy := retry.Policy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay.ToDuration()}
	return NewFailoverExecutor(endpoints, policy, logger)
}

// Execute tries call on every endpoint in order until one succeeds. When
// every endpoint fails the pass is retried; exhaustion is reported as
// sources.ErrSourceUnavailable joined with each endpoint's error.
func Execute[T any](ctx context.Context, e *FailoverExecutor, title string, call func(ctx context.Context, c MethodCaller) (T, error)) (T, error) {
	v, err := retry.Do(ctx, e.policy, title, e.logger, func(ctx context.Context) (T, error) {
		return executeOnce(ctx, e, title, call)
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", sources.ErrSourceUnavailable, title, err)
	}
	return v, nil
}

func executeOnce[T any](ctx context.Context, e *FailoverExecutor, title string, call func(ctx context.Context, c MethodCaller) (T, error)) (T, error) {
	var errs []error
	for i, ep := range e.endpoints {
		start := time.Now()
		v, err := call(ctx, ep.Caller)
		metrics.RecordChainRequest(ep.Name, err == nil)
		if err == nil {
			return v, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", ep.Name, err))
		e.logger.Warn("Chain call failed",
			"title", title,
			"endpoint", ep.Name,
			"duration", time.Since(start).String(),
			"error", err)
		if i < len(e.endpoints)-1 {
			metrics.RecordChainFailover()
			e.logger.Debug("Switching to the next endpoint", "from", ep.Name, "to", e.endpoints[i+1].Name)
		}
	}

	var zero T
	return zero, errors.Join(errs...)
}

// RunGetMethod runs method on the first endpoint that answers.
func (e *FailoverExecutor) RunGetMethod(ctx context.Context, addr *address.Address, method string) (*Stack, error) {
	return Execute(ctx, e, "Run "+method, func(ctx context.Context, c MethodCaller) (*Stack, error) {
		return c.RunGetMethod(ctx, addr, method)
	})
}
