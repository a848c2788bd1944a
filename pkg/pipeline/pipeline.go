// Package pipeline runs one signing tick: verify every oracle network in
// parallel, reduce to consensus prices, derive liquid staking prices and
// sign the resulting commitment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/commitment"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

var (
	// ErrNoVerifiers indicates a pipeline built without any source.
	ErrNoVerifiers = errors.New("no verifiers configured")
	// ErrSignerRequired indicates a pipeline built without a signing key.
	ErrSignerRequired = errors.New("signer is required")
	// ErrNothingToSign indicates a tick where no signed asset has a price.
	ErrNothingToSign = errors.New("no asset prices to sign")
)

// Deriver prices liquid staking assets from the TON consensus price.
type Deriver interface {
	Assets() []assets.Asset
	Derive(ctx context.Context, asset assets.Asset, basePrice decimal.Decimal) (decimal.Decimal, error)
}

// TickState is carried from one tick into the next.
type TickState struct {
	Counter uint64
	Last    *Result
}

// Result is the outcome of one successful tick.
type Result struct {
	Tick         uint64
	Time         time.Time
	Prices       aggregator.PriceSet
	Omitted      []assets.Asset
	Observations []sources.Observation
	Signed       *commitment.Signed
	Data         commitment.DataToPush
}

// Config wires a pipeline.
type Config struct {
	Verifiers  []sources.Verifier
	Aggregator aggregator.Aggregator
	Deriver    Deriver // optional
	Signer     commitment.Signer
	Notifier   notify.Notifier
	Logger     *logging.Logger
	Now        func() time.Time
}

// Pipeline runs ticks. It holds no per-tick state.
type Pipeline struct {
	verifiers  []sources.Verifier
	aggregator aggregator.Aggregator
	deriver    Deriver
	signer     commitment.Signer
	notifier   notify.Notifier
	logger     *logging.Logger
	now        func() time.Time
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if len(cfg.Verifiers) == 0 {
		return nil, ErrNoVerifiers
	}
	if cfg.Signer == nil {
		return nil, ErrSignerRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	agg := cfg.Aggregator
	if agg == nil {
		agg = aggregator.NewMedianAggregator(logger)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		verifiers:  cfg.Verifiers,
		aggregator: agg,
		deriver:    cfg.Deriver,
		signer:     cfg.Signer,
		notifier:   notifier,
		logger:     logger.With("component", "pipeline"),
		now:        now,
	}, nil
}

// Tick runs one tick and returns the next state. Packaging and signing
// failures are returned; source and derivation failures only shrink the
// committed asset set.
func (p *Pipeline) Tick(ctx context.Context, state TickState) (next TickState, res *Result, err error) {
	start := p.now()
	tick := state.Counter + 1
	next = TickState{Counter: tick, Last: state.Last}
	logger := p.logger.With("tick", tick)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick %d panicked: %v", tick, r)
		}
		metrics.RecordTick(err == nil, p.now().Sub(start))
	}()

	observations := p.collect(ctx, logger)

	feeds, err := p.aggregator.Aggregate(observations)
	if err != nil {
		logger.Warn("Some feeds have no valid observations", "error", err)
	}
	prices := aggregator.Resolve(feeds)

	if p.deriver != nil {
		p.derive(ctx, logger, feeds, prices)
	}

	for _, a := range prices.Sorted() {
		if _, err := commitment.ScalePrice(prices[a]); err != nil {
			logger.Warn("Dropping invalid price", "asset", a.String(), "error", err)
			p.notify(ctx, notify.Warnf("pipeline", "%s dropped from tick %d: %v", a, tick, err))
			delete(prices, a)
		}
	}

	var omitted []assets.Asset
	for _, a := range assets.Signed() {
		if _, ok := prices[a]; ok {
			continue
		}
		omitted = append(omitted, a)
		metrics.RecordAssetOmitted(a.String())
		p.notify(ctx, notify.Warnf("pipeline", "%s omitted from tick %d: no valid price", a, tick))
	}
	if len(prices) == 0 {
		return next, nil, ErrNothingToSign
	}

	c, err := commitment.FromPrices(uint32(start.Unix()), prices)
	if err != nil {
		return next, nil, fmt.Errorf("build commitment: %w", err)
	}
	signed, err := commitment.Sign(c, p.signer)
	if err != nil {
		return next, nil, fmt.Errorf("sign commitment: %w", err)
	}

	for a, v := range prices {
		f, _ := v.Float64()
		metrics.RecordConsensusPrice(a.String(), f)
	}
	metrics.RecordCommitment(c.Timestamp)

	res = &Result{
		Tick:         tick,
		Time:         start,
		Prices:       prices,
		Omitted:      omitted,
		Observations: observations,
		Signed:       signed,
		Data:         commitment.NewDataToPush(signed),
	}
	next.Last = res

	logger.Info("Tick complete",
		"timestamp", c.Timestamp,
		"assets", len(c.Entries),
		"omitted", len(omitted),
		"duration", p.now().Sub(start).String())
	return next, res, nil
}

// collect runs every verifier concurrently. A failing verifier contributes
// nothing; partial rejections keep the valid observations.
func (p *Pipeline) collect(ctx context.Context, logger *logging.Logger) []sources.Observation {
	results := make([][]sources.Observation, len(p.verifiers))

	var g errgroup.Group
	for i, v := range p.verifiers {
		i, v := i, v
		g.Go(func() error {
			obs, err := v.Fetch(ctx)
			results[i] = obs
			switch {
			case err != nil && len(obs) == 0:
				metrics.RecordSourceFetch(v.Name(), false)
				logger.Error("Source failed", "source", v.Name(), "error", err)
				p.notify(ctx, notify.Errorf(v.Name(), "source failed: %v", err))
			case err != nil:
				metrics.RecordSourceFetch(v.Name(), true)
				logger.Warn("Source rejected some feeds", "source", v.Name(), "error", err)
				p.notify(ctx, notify.Warnf(v.Name(), "rejected feeds: %v", err))
			default:
				metrics.RecordSourceFetch(v.Name(), true)
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []sources.Observation
	for _, obs := range results {
		out = append(out, obs...)
	}
	return out
}

// derive fills derived assets into prices. The TON consensus price must
// already be resolved.
func (p *Pipeline) derive(ctx context.Context, logger *logging.Logger, feeds, prices aggregator.PriceSet) {
	targets := p.deriver.Assets()
	if len(targets) == 0 {
		return
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, a := range targets {
		base, ok := feeds[a.Source()]
		if !ok {
			logger.Warn("Skipping derivation without base price", "asset", a.String(), "base", a.Source().String())
			continue
		}
		a := a
		g.Go(func() error {
			v, err := p.deriver.Derive(ctx, a, base)
			if err != nil {
				logger.Error("Derivation failed", "asset", a.String(), "error", err)
				p.notify(ctx, notify.Errorf("staking", "%s derivation failed: %v", a, err))
				return nil
			}
			mu.Lock()
			prices[a] = v
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) notify(ctx context.Context, msg notify.Message) {
	if err := p.notifier.Notify(ctx, msg); err != nil {
		p.logger.Debug("Notification not queued", "error", err)
	}
}

// Close releases verifiers holding connections.
func (p *Pipeline) Close() error {
	var errs []error
	for _, v := range p.verifiers {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", v.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
