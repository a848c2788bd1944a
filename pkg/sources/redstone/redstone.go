// Package redstone verifies signed Redstone data packages fetched from the
// public gateways against the oracle registry.
package redstone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
	"github.com/evaafi/merkle-oracles-pub/pkg/version"
)

// SourceName is the registry name of the Redstone verifier.
const SourceName = "redstone"

func init() {
	sources.Register(SourceName,
		func(cfg *config.SourcesConfig) bool { return config.IsEnabled(cfg.Redstone.Enabled) },
		func(cfg *config.SourcesConfig, opts sources.Options) (sources.Verifier, error) {
			return New(cfg.Redstone, opts)
		})
}

// Response maps data feed ids to the packages signed for them.
type Response map[string][]SignedDataPackage

type feed struct {
	id    string
	asset assets.Asset
}

// Source verifies Redstone gateway packages.
type Source struct {
	*sources.BaseSource
	gateways      []string
	serviceID     string
	feeds         []feed
	uniqueSigners int
	decimals      int32
	registry      SignerRegistry
}

// Ensure Source implements sources.Verifier.
var _ sources.Verifier = (*Source)(nil)

// New creates a Redstone verifier. A static signer map in cfg takes
// precedence over the registry URL.
func New(cfg config.RedstoneConfig, opts sources.Options) (*Source, error) {
	if len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("%w: redstone", sources.ErrNoFeedsConfigured)
	}
	if len(cfg.Gateways) == 0 {
		return nil, config.ErrGatewaysRequired
	}

	feeds := make([]feed, 0, len(cfg.Feeds))
	for _, id := range cfg.Feeds {
		asset, err := assets.Parse(id)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed{id: id, asset: asset})
	}

	if opts.HTTPClient == nil && cfg.Timeout > 0 {
		opts.HTTPClient = &http.Client{Timeout: cfg.Timeout.ToDuration()}
	}
	base := sources.NewBaseSource(SourceName, opts)

	var registry SignerRegistry
	if len(cfg.Signers) > 0 {
		static, err := NewStaticRegistry(cfg.Signers)
		if err != nil {
			return nil, err
		}
		registry = static
	} else {
		registryURL := cfg.RegistryURL
		if registryURL == "" {
			registryURL = config.DefaultRedstoneRegistryURL
		}
		registry = NewHTTPRegistry(registryURL, base.HTTPClient())
	}

	serviceID := cfg.DataServiceID
	if serviceID == "" {
		serviceID = config.DefaultRedstoneDataService
	}
	unique := cfg.UniqueSigners
	if unique == 0 {
		unique = config.DefaultRedstoneUniqueSigners
	}
	decimals := cfg.Decimals
	if decimals == 0 {
		decimals = config.DefaultRedstoneDecimals
	}

	return &Source{
		BaseSource:    base,
		gateways:      cfg.Gateways,
		serviceID:     serviceID,
		feeds:         feeds,
		uniqueSigners: unique,
		decimals:      decimals,
		registry:      registry,
	}, nil
}

// Fetch loads the registry and the latest packages, then verifies them.
func (s *Source) Fetch(ctx context.Context) ([]sources.Observation, error) {
	type loaded struct {
		signers  map[common.Address]string
		packages Response
	}

	l, err := sources.Retry(ctx, s.BaseSource, "Load Redstone prices", func(ctx context.Context) (loaded, error) {
		signers, err := s.registry.Load(ctx)
		if err != nil {
			return loaded{}, err
		}
		packages, err := s.requestPackages(ctx)
		if err != nil {
			return loaded{}, err
		}
		return loaded{signers: signers, packages: packages}, nil
	})
	if err != nil {
		return nil, err
	}

	return s.Verify(ctx, l.packages, l.signers)
}

// requestPackages queries the gateways in order and returns the first answer.
func (s *Source) requestPackages(ctx context.Context) (Response, error) {
	var errs []error
	for _, gw := range s.gateways {
		resp, err := s.requestGateway(ctx, gw)
		if err == nil {
			return resp, nil
		}
		s.Logger().Debug("Gateway request failed", "gateway", gw, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", gw, err))
	}
	return nil, errors.Join(errs...)
}

func (s *Source) requestGateway(ctx context.Context, gateway string) (Response, error) {
	endpoint := strings.TrimRight(gateway, "/") + "/data-packages/latest/" + url.PathEscape(s.serviceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := s.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data packages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", sources.ErrUnexpectedStatus, resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %w", sources.ErrInvalidResponse, err)
	}
	return out, nil
}

type signedValue struct {
	value decimal.Decimal
	ts    time.Time
}

// Verify checks freshness and signer provenance of every package and reduces
// each feed's values by median, counting each signer once. A signer outside
// the expected data service fails the whole source; stale packages and
// missing signers reject only the affected feed.
func (s *Source) Verify(ctx context.Context, resp Response, signers map[common.Address]string) ([]sources.Observation, error) {
	now := s.Now()

	var (
		obs  []sources.Observation
		errs []error
	)
	for _, f := range s.feeds {
		packages := resp[f.id]

		var (
			latest = make(map[common.Address]signedValue)
			order  []common.Address
			stale  error
		)
		for i := range packages {
			pkg := &packages[i]
			ts := pkg.Timestamp()

			signer, err := pkg.RecoverSigner(s.decimals)
			if err != nil {
				s.Alert(ctx, "Failed to recover signer for %s package: %v", f.id, err)
				return nil, fmt.Errorf("%s: %w", f.id, err)
			}
			if service := signers[signer]; service != s.serviceID {
				s.Alert(ctx, "Invalid data service id for signer %s", signer.Hex())
				return nil, fmt.Errorf("%w: signer %s provisioned for %q, expected %q",
					sources.ErrInvalidSigner, signer.Hex(), service, s.serviceID)
			}
			if pkg.SignerAddress != "" && common.HexToAddress(pkg.SignerAddress) != signer {
				s.Alert(ctx, "Signer mismatch for %s package: claimed %s, recovered %s", f.id, pkg.SignerAddress, signer.Hex())
				return nil, fmt.Errorf("%w: claimed %s, recovered %s", sources.ErrInvalidSigner, pkg.SignerAddress, signer.Hex())
			}

			if err := sources.CheckFresh(now, ts, s.TTL()); err != nil {
				s.Alert(ctx, "Detected stale price data package for %s. Timestamp: %d", f.id, pkg.TimestampMilliseconds)
				stale = err
			}

			v, ok, err := pkg.Value(f.id, s.decimals)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.id, err)
			}
			if !ok {
				continue
			}
			prev, dup := latest[signer]
			if !dup {
				order = append(order, signer)
			}
			if !dup || ts.After(prev.ts) {
				latest[signer] = signedValue{value: v, ts: ts}
			}
		}

		if len(latest) < s.uniqueSigners {
			errs = append(errs, fmt.Errorf("%w: %s has %d unique signers, need %d",
				sources.ErrInsufficientSignatures, f.id, len(latest), s.uniqueSigners))
			continue
		}

		// One value per signer: the newest package wins.
		values := make([]decimal.Decimal, 0, len(order))
		var oldest time.Time
		for _, signer := range order {
			sv := latest[signer]
			values = append(values, sv.value)
			if oldest.IsZero() || sv.ts.Before(oldest) {
				oldest = sv.ts
			}
		}

		median, err := aggregator.Median(values)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.id, err))
			continue
		}
		if stale != nil {
			obs = append(obs, s.Reject(f.asset, median, oldest, stale))
			continue
		}
		obs = append(obs, s.Observe(f.asset, median, oldest))
	}

	return obs, errors.Join(append(errs, sources.Rejections(obs))...)
}
