// Package retry runs operations under a bounded, constant-delay retry policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
)

// Policy is the number of attempts and the fixed pause between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, or the attempts are
// exhausted. The final error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, title string, logger *logging.Logger, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		if logger != nil {
			logger.Debug("Attempt failed, retrying",
				"title", title,
				"attempt", attempt,
				"max_attempts", attempts,
				"wait", wait.String(),
				"error", err)
		}
	})
}
