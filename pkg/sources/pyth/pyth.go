// Package pyth verifies Pyth price updates delivered as Hermes accumulator
// payloads: a Wormhole VAA signed by the guardian set plus per-feed Merkle
// inclusion proofs against the VAA root.
package pyth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// SourceName is the registry name of the Pyth verifier.
const SourceName = "pyth"

func init() {
	sources.Register(SourceName,
		func(cfg *config.SourcesConfig) bool { return config.IsEnabled(cfg.Pyth.Enabled) },
		func(cfg *config.SourcesConfig, opts sources.Options) (sources.Verifier, error) {
			return New(cfg.Pyth, opts)
		})
}

type feed struct {
	asset assets.Asset
	id    [32]byte
	hexID string
}

// Source verifies Hermes accumulator updates.
type Source struct {
	*sources.BaseSource
	hermes    *HermesClient
	guardians *GuardianSet
	feeds     []feed
}

// Ensure Source implements sources.Verifier.
var _ sources.Verifier = (*Source)(nil)

// New creates a Pyth verifier.
func New(cfg config.PythConfig, opts sources.Options) (*Source, error) {
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("%w: pyth", sources.ErrNoFeedsConfigured)
	}

	feeds := make([]feed, 0, len(cfg.Feeds))
	for symbol, id := range cfg.Feeds {
		asset, err := assets.Parse(symbol)
		if err != nil {
			return nil, err
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(id, "0x"))
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("invalid pyth feed id %q for %s", id, symbol)
		}
		f := feed{asset: asset, hexID: hex.EncodeToString(raw)}
		copy(f.id[:], raw)
		feeds = append(feeds, f)
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].asset < feeds[j].asset })

	minValid := cfg.MinValidSignatures
	if minValid == 0 {
		minValid = config.DefaultMinValidSignatures
	}
	guardians, err := NewGuardianSet(cfg.Guardians, minValid)
	if err != nil {
		return nil, err
	}

	if opts.HTTPClient == nil && cfg.Timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: cfg.Timeout.ToDuration()}
	}
	base := sources.NewBaseSource(SourceName, opts)

	url := cfg.URL
	if url == "" {
		url = config.DefaultHermesURL
	}

	return &Source{
		BaseSource: base,
		hermes:     NewHermesClient(url, base.HTTPClient()),
		guardians:  guardians,
		feeds:      feeds,
	}, nil
}

// Fetch downloads the latest accumulator update, verifies the guardian
// signatures and returns one observation per configured feed.
func (s *Source) Fetch(ctx context.Context) ([]sources.Observation, error) {
	ids := make([]string, len(s.feeds))
	for i, f := range s.feeds {
		ids[i] = f.hexID
	}

	raw, err := sources.Retry(ctx, s.BaseSource, "Load Pyth prices", func(ctx context.Context) ([]byte, error) {
		return s.hermes.LatestUpdate(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	return s.Verify(ctx, raw)
}

// Verify checks an accumulator update and extracts the configured feeds.
func (s *Source) Verify(ctx context.Context, raw []byte) ([]sources.Observation, error) {
	update, err := ParseAccumulatorUpdate(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse accumulator update: %w", err)
	}

	valid, err := s.guardians.Verify(&update.VAA, func(inv InvalidSignature) {
		s.Logger().Warn("Invalid guardian signature",
			"index", inv.Index,
			"address", inv.Address,
			"error", inv.Err)
		switch {
		case errors.Is(inv.Err, ErrDuplicateGuardian):
			s.Alert(ctx, "Duplicate signature from guardian index %d", inv.Index)
		case inv.Address != "":
			s.Alert(ctx, "Invalid signature. Guardian %s is not in the list of guardians", inv.Address)
		default:
			s.Alert(ctx, "Invalid signature from guardian index %d: %v", inv.Index, inv.Err)
		}
	})
	if err != nil {
		return nil, err
	}
	s.Logger().Debug("Guardian signatures verified",
		"valid", valid,
		"guardians", s.guardians.Size(),
		"attestation_time", update.VAA.Timestamp)

	type parsed struct {
		msg        PriceMessage
		proofValid bool
	}
	byID := make(map[[32]byte]parsed)
	for _, u := range update.Updates {
		msg, ok, err := ParsePriceMessage(u.Message)
		if err != nil {
			s.Logger().Warn("Skipping malformed message", "error", err)
			continue
		}
		if !ok {
			continue
		}
		byID[msg.ID] = parsed{msg: msg, proofValid: u.ProofValid}
	}

	var (
		obs     []sources.Observation
		missing []error
	)
	for _, f := range s.feeds {
		p, ok := byID[f.id]
		if !ok {
			missing = append(missing, fmt.Errorf("%w: %s (%s)", sources.ErrMissingFeed, f.asset, f.hexID))
			continue
		}
		price := decimal.New(p.msg.Price, p.msg.Expo)
		publish := time.Unix(p.msg.PublishTime, 0)
		if !p.proofValid {
			obs = append(obs, s.Reject(f.asset, price, publish, sources.ErrProofMismatch))
			continue
		}
		obs = append(obs, s.Observe(f.asset, price, publish))
	}

	return obs, errors.Join(append(missing, sources.Rejections(obs))...)
}
