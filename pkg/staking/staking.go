// Package staking derives liquid staking token prices from pool reserves
// and the TON consensus price.
package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/chain"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
)

// Scale is the fixed-point precision of ratios and prices.
const Scale = 1_000_000_000

var (
	scaleBig = big.NewInt(Scale)

	// ErrZeroReserve indicates a pool reporting a zero liquid token supply.
	ErrZeroReserve = errors.New("zero pool reserve")
	// ErrUnsupportedAsset indicates an asset that is not derived from a pool.
	ErrUnsupportedAsset = errors.New("asset is not a liquid staking token")
)

// Reserves are the two balances read from a pool.
type Reserves struct {
	Asset *big.Int // liquid token supply
	Base  *big.Int // TON balance backing it
}

// Ratio returns base*1e9/asset.
func (r Reserves) Ratio() (*big.Int, error) {
	if r.Asset == nil || r.Base == nil || r.Asset.Sign() <= 0 {
		return nil, ErrZeroReserve
	}
	out := new(big.Int).Mul(r.Base, scaleBig)
	return out.Quo(out, r.Asset), nil
}

// DerivePrice computes round(basePrice*1e9)*ratio/1e9 in integers and
// returns it as a decimal with 9 places.
func DerivePrice(basePrice decimal.Decimal, r Reserves) (decimal.Decimal, error) {
	ratio, err := r.Ratio()
	if err != nil {
		return decimal.Zero, err
	}
	scaled := basePrice.Shift(9).Round(0).BigInt()
	price := new(big.Int).Mul(scaled, ratio)
	price.Quo(price, scaleBig)
	return decimal.NewFromBigInt(price, -9), nil
}

// Pool locates the reserves of one liquid staking token.
type Pool struct {
	Asset   assets.Asset
	Address *address.Address
	Method  string
	// Skip is the number of stack entries preceding the reserves.
	Skip int
	// AssetFirst is true when the token supply precedes the TON balance.
	AssetFirst bool
}

// PoolFromConfig parses a pool section.
func PoolFromConfig(asset assets.Asset, cfg config.PoolConfig) (Pool, error) {
	if asset.Kind() != assets.KindDerived {
		return Pool{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	addr, err := address.ParseAddr(cfg.Address)
	if err != nil {
		return Pool{}, fmt.Errorf("%s pool address %q: %w", asset, cfg.Address, err)
	}
	return Pool{
		Asset:      asset,
		Address:    addr,
		Method:     cfg.Method,
		Skip:       cfg.Skip,
		AssetFirst: cfg.AssetFirst,
	}, nil
}

// Deriver reads pool reserves and derives prices.
type Deriver struct {
	caller chain.MethodCaller
	pools  map[assets.Asset]Pool
	logger *logging.Logger
}

// NewDeriver creates a deriver reading through caller.
func NewDeriver(caller chain.MethodCaller, pools []Pool, logger *logging.Logger) *Deriver {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	m := make(map[assets.Asset]Pool, len(pools))
	for _, p := range pools {
		m[p.Asset] = p
	}
	return &Deriver{caller: caller, pools: m, logger: logger.With("component", "staking")}
}

// NewDeriverFromConfig creates a deriver for stTON and tsTON.
func NewDeriverFromConfig(caller chain.MethodCaller, cfg config.StakingConfig, logger *logging.Logger) (*Deriver, error) {
	st, err := PoolFromConfig(assets.STTON, cfg.StTON)
	if err != nil {
		return nil, err
	}
	ts, err := PoolFromConfig(assets.TSTON, cfg.TsTON)
	if err != nil {
		return nil, err
	}
	return NewDeriver(caller, []Pool{st, ts}, logger), nil
}

// Assets returns the derived assets this deriver knows about.
func (d *Deriver) Assets() []assets.Asset {
	var out []assets.Asset
	for _, a := range assets.All() {
		if _, ok := d.pools[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Reserves reads the pool balances for asset.
func (d *Deriver) Reserves(ctx context.Context, asset assets.Asset) (Reserves, error) {
	pool, ok := d.pools[asset]
	if !ok {
		return Reserves{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}

	stack, err := d.caller.RunGetMethod(ctx, pool.Address, pool.Method)
	if err != nil {
		return Reserves{}, fmt.Errorf("load %s reserves: %w", asset, err)
	}
	if err := stack.Skip(pool.Skip); err != nil {
		return Reserves{}, fmt.Errorf("load %s reserves: %w", asset, err)
	}
	first, err := stack.ReadBigNumber()
	if err != nil {
		return Reserves{}, fmt.Errorf("load %s reserves: %w", asset, err)
	}
	second, err := stack.ReadBigNumber()
	if err != nil {
		return Reserves{}, fmt.Errorf("load %s reserves: %w", asset, err)
	}

	if pool.AssetFirst {
		return Reserves{Asset: first, Base: second}, nil
	}
	return Reserves{Asset: second, Base: first}, nil
}

// Derive reads reserves for asset and prices it against basePrice.
func (d *Deriver) Derive(ctx context.Context, asset assets.Asset, basePrice decimal.Decimal) (decimal.Decimal, error) {
	r, err := d.Reserves(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	price, err := DerivePrice(basePrice, r)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", asset, err)
	}
	d.logger.Debug("Derived price",
		"asset", asset.String(),
		"base_price", basePrice.String(),
		"asset_reserve", r.Asset.String(),
		"base_reserve", r.Base.String(),
		"price", price.String())
	return price, nil
}
