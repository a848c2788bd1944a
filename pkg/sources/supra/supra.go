// Package supra reads Supra pull-oracle proofs over gRPC and decodes the
// ABI-encoded cluster proofs into prices.
package supra

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// SourceName is the registry name of the Supra verifier.
const SourceName = "supra"

func init() {
	sources.Register(SourceName,
		func(cfg *config.SourcesConfig) bool { return config.IsEnabled(cfg.Supra.Enabled) },
		func(cfg *config.SourcesConfig, opts sources.Options) (sources.Verifier, error) {
			return New(cfg.Supra, opts)
		})
}

type slot struct {
	pair  uint32
	asset assets.Asset
}

// Source verifies Supra pull proofs.
type Source struct {
	*sources.BaseSource
	client    *PullClient
	chainType string
	slots     []slot
	cfg       config.SupraConfig
}

// Ensure Source implements sources.Verifier.
var _ sources.Verifier = (*Source)(nil)

// New creates a Supra verifier. Extra dial options are appended to the
// defaults.
func New(cfg config.SupraConfig, opts sources.Options, dialOpts ...grpc.DialOption) (*Source, error) {
	if len(cfg.Pairs) == 0 {
		return nil, fmt.Errorf("%w: supra", sources.ErrNoFeedsConfigured)
	}
	slots := make([]slot, 0, len(cfg.Pairs))
	for symbol, pair := range cfg.Pairs {
		asset, err := assets.Parse(symbol)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot{pair: pair, asset: asset})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].asset < slots[j].asset })

	address := cfg.Address
	if address == "" {
		address = config.DefaultSupraAddress
	}
	chainType := cfg.ChainType
	if chainType == "" {
		chainType = config.DefaultSupraChainType
	}

	client, err := NewPullClient(address, cfg.Insecure, dialOpts...)
	if err != nil {
		return nil, err
	}

	return &Source{
		BaseSource: sources.NewBaseSource(SourceName, opts),
		client:     client,
		chainType:  chainType,
		slots:      slots,
		cfg:        cfg,
	}, nil
}

// Close closes the gRPC connection.
func (s *Source) Close() error {
	return s.client.Close()
}

// Fetch requests a proof for the configured pairs and decodes it.
func (s *Source) Fetch(ctx context.Context) ([]sources.Observation, error) {
	pairs := make([]uint32, len(s.slots))
	for i, sl := range s.slots {
		pairs[i] = sl.pair
	}

	resp, err := sources.Retry(ctx, s.BaseSource, "Get Supra prices", func(ctx context.Context) (*PullResponse, error) {
		if t := s.cfg.Timeout.ToDuration(); t > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t)
			defer cancel()
		}
		return s.client.GetProof(ctx, pairs, s.chainType)
	})
	if err != nil {
		s.Alert(ctx, "Failed to get proof: %v", err)
		return nil, err
	}
	if resp.Evm == nil || len(resp.Evm.ProofBytes) == 0 {
		err := fmt.Errorf("%w: response carries no evm proof", sources.ErrInvalidResponse)
		s.Alert(ctx, "Failed to get proof: %v", err)
		return nil, err
	}

	obs, err := s.Verify(resp.Evm.ProofBytes)
	if err != nil && len(obs) == 0 {
		s.Alert(ctx, "Failed to decode proof: %v", err)
	}
	return obs, err
}

// Verify decodes proof bytes and routes each flagged pair to its asset slot.
func (s *Source) Verify(proofBytes []byte) ([]sources.Observation, error) {
	pairs, err := DecodeProof(proofBytes)
	if err != nil {
		return nil, err
	}

	byPair := make(map[uint64]PairPrice, len(pairs))
	for _, p := range pairs {
		byPair[p.Pair] = p
	}

	var (
		obs     []sources.Observation
		missing []error
	)
	for _, sl := range s.slots {
		p, ok := byPair[uint64(sl.pair)]
		if !ok {
			missing = append(missing, fmt.Errorf("%w: %s (pair %d)", sources.ErrMissingFeed, sl.asset, sl.pair))
			continue
		}
		price := decimal.NewFromBigInt(p.Price, -targetDecimals)
		obs = append(obs, s.Observe(sl.asset, price, p.Timestamp))
	}

	return obs, errors.Join(append(missing, sources.Rejections(obs))...)
}
