package pipeline

import (
	"context"
	"time"

	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
)

// Publisher receives every successful tick result.
type Publisher interface {
	Publish(res *Result)
}

// Runner drives ticks at a fixed interval.
type Runner struct {
	pipeline   *Pipeline
	interval   time.Duration
	publishers []Publisher
	logger     *logging.Logger
}

// NewRunner creates a runner.
func NewRunner(p *Pipeline, interval time.Duration, publishers ...Publisher) *Runner {
	return &Runner{
		pipeline:   p,
		interval:   interval,
		publishers: publishers,
		logger:     p.logger,
	}
}

// Run ticks until ctx is canceled. A failed tick is reported and the loop
// moves on to the next one.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting signing loop", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var state TickState
	for {
		state = r.runOnce(ctx, state)

		select {
		case <-ctx.Done():
			r.logger.Info("Signing loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, state TickState) TickState {
	next, res, err := r.pipeline.Tick(ctx, state)
	if err != nil {
		r.logger.Error("Tick failed", "tick", next.Counter, "error", err)
		r.pipeline.notify(ctx, notify.Errorf("pipeline", "tick %d failed: %v", next.Counter, err))
		return next
	}
	for _, p := range r.publishers {
		p.Publish(res)
	}
	return next
}
