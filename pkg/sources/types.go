package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
)

// Observation is one price reported by one source during one tick.
type Observation struct {
	Source      string          `json:"source"`
	Asset       assets.Asset    `json:"asset"`
	Value       decimal.Decimal `json:"value"`
	PublishTime time.Time       `json:"publish_time"`
	Valid       bool            `json:"valid"`
	// Reason is set when Valid is false.
	Reason error `json:"-"`
}

// Verifier fetches and cryptographically validates one oracle network.
//
// Fetch returns every observation it could extract, valid or not. A non-nil
// error with observations means partial rejection; a non-nil error without
// observations means the source failed as a whole for this tick.
type Verifier interface {
	Name() string
	Fetch(ctx context.Context) ([]Observation, error)
}

// Options carries the collaborators handed to every verifier factory.
type Options struct {
	Logger     *logging.Logger
	Notifier   notify.Notifier
	HTTPClient *http.Client
	Retry      config.RetryConfig
	PriceTTL   time.Duration
	Now        func() time.Time
}

// Factory builds a verifier from the sources section of the configuration.
type Factory func(cfg *config.SourcesConfig, opts Options) (Verifier, error)
