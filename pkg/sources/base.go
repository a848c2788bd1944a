package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
	"github.com/evaafi/merkle-oracles-pub/pkg/retry"
)

// DefaultPriceTTL is the freshness window applied when none is configured.
const DefaultPriceTTL = 30 * time.Second

// BaseSource provides the plumbing every verifier shares: logging,
// fire-and-forget alerts, the retry policy and the freshness clock.
type BaseSource struct {
	name     string
	logger   *logging.Logger
	notifier notify.Notifier
	client   *http.Client
	retry    retry.Policy
	ttl      time.Duration
	now      func() time.Time
}

// NewBaseSource fills unset options with defaults.
func NewBaseSource(name string, opts Options) *BaseSource {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := opts.PriceTTL
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := retry.Policy{Attempts: opts.Retry.Attempts, Delay: opts.Retry.Delay.ToDuration()}
	if policy.Attempts == 0 {
		policy = retry.Policy{Attempts: config.DefaultSourceRetryAttempts, Delay: config.DefaultRetryDelay}
	}

	return &BaseSource{
		name:     name,
		logger:   logger.With("source", name),
		notifier: notifier,
		client:   client,
		retry:    policy,
		ttl:      ttl,
		now:      now,
	}
}

// Name returns the source name
func (b *BaseSource) Name() string { return b.name }

// Logger returns the source scoped logger.
func (b *BaseSource) Logger() *logging.Logger { return b.logger }

// HTTPClient returns the client used for outbound requests.
func (b *BaseSource) HTTPClient() *http.Client { return b.client }

// Now returns the current time from the configured clock.
func (b *BaseSource) Now() time.Time { return b.now() }

// TTL returns the freshness window.
func (b *BaseSource) TTL() time.Duration { return b.ttl }

// Alert hands a warning to the notifier without waiting for delivery.
func (b *BaseSource) Alert(ctx context.Context, format string, args ...interface{}) {
	msg := notify.Warnf(b.name, format, args...)
	if err := b.notifier.Notify(ctx, msg); err != nil {
		b.logger.Debug("Alert not queued", "error", err)
	}
}

// Retry runs op under the source retry policy, wrapping exhaustion in ErrSourceUnavailable.
func Retry[T any](ctx context.Context, b *BaseSource, title string, op func(context.Context) (T, error)) (T, error) {
	v, err := retry.Do(ctx, b.retry, title, b.logger, op)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, title, err)
	}
	return v, nil
}

// Observe builds an observation, applying the freshness rule to publish.
func (b *BaseSource) Observe(asset assets.Asset, value decimal.Decimal, publish time.Time) Observation {
	now := b.now()
	obs := Observation{
		Source:      b.name,
		Asset:       asset,
		Value:       value,
		PublishTime: publish,
		Valid:       true,
	}
	if err := CheckFresh(now, publish, b.ttl); err != nil {
		obs.Valid = false
		obs.Reason = fmt.Errorf("%s: %w", asset, err)
	}
	metrics.RecordObservation(b.name, asset.String(), obs.Valid, now.Sub(publish))
	return obs
}

// Reject builds an invalid observation carrying reason.
func (b *BaseSource) Reject(asset assets.Asset, value decimal.Decimal, publish time.Time, reason error) Observation {
	metrics.RecordObservation(b.name, asset.String(), false, b.now().Sub(publish))
	return Observation{
		Source:      b.name,
		Asset:       asset,
		Value:       value,
		PublishTime: publish,
		Valid:       false,
		Reason:      fmt.Errorf("%s: %w", asset, reason),
	}
}

// CheckFresh fails with ErrStaleData when now-publish exceeds ttl.
func CheckFresh(now, publish time.Time, ttl time.Duration) error {
	if age := now.Sub(publish); age > ttl {
		return fmt.Errorf("%w: published %s, age %s exceeds %s",
			ErrStaleData, publish.UTC().Format(time.RFC3339), age.Truncate(time.Millisecond), ttl)
	}
	return nil
}

// Rejections joins the reasons of every invalid observation, or returns nil.
func Rejections(obs []Observation) error {
	var errs []error
	for _, o := range obs {
		if !o.Valid && o.Reason != nil {
			errs = append(errs, o.Reason)
		}
	}
	return errors.Join(errs...)
}
