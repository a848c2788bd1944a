// Package assets defines the fixed asset universe signed by the oracle.
//
// Every asset has a stable 256-bit identifier derived as sha256(symbol)
// read as a big-endian unsigned integer. The identifiers are shared with the
// on-chain verifier and must never change.
package assets

import (
	"crypto/sha256"
	"fmt"
	"math/big"
)

// Asset enumerates every asset the pipeline knows about.
type Asset int

const (
	TON Asset = iota
	USDT
	USDC
	JUSDT
	JUSDC
	STTON
	TSTON

	numAssets
)

// Kind describes where an asset's consensus price comes from.
type Kind int

const (
	// KindFeed assets are quoted directly by the oracle networks.
	KindFeed Kind = iota
	// KindAlias assets reuse the consensus price of another feed.
	KindAlias
	// KindDerived assets are computed from pool reserves and the TON price.
	KindDerived
)

type info struct {
	symbol string
	kind   Kind
	signed bool
	// source is the feed whose consensus price this asset takes (feeds point to themselves).
	source Asset
}

var table = [numAssets]info{
	TON:   {symbol: "TON", kind: KindFeed, signed: true, source: TON},
	USDT:  {symbol: "USDT", kind: KindFeed, signed: true, source: USDT},
	USDC:  {symbol: "USDC", kind: KindFeed, signed: false, source: USDC},
	JUSDT: {symbol: "jUSDT", kind: KindAlias, signed: true, source: USDT},
	JUSDC: {symbol: "jUSDC", kind: KindAlias, signed: true, source: USDC},
	STTON: {symbol: "stTON", kind: KindDerived, signed: true, source: TON},
	TSTON: {symbol: "tsTON", kind: KindDerived, signed: true, source: TON},
}

var (
	ids      [numAssets]*big.Int
	bySymbol = make(map[string]Asset, numAssets)
)

func init() {
	for a := Asset(0); a < numAssets; a++ {
		sym := table[a].symbol
		sum := sha256.Sum256([]byte(sym))
		ids[a] = new(big.Int).SetBytes(sum[:])
		bySymbol[sym] = a
	}
}

// All returns every asset in declaration order.
func All() []Asset {
	out := make([]Asset, 0, numAssets)
	for a := Asset(0); a < numAssets; a++ {
		out = append(out, a)
	}
	return out
}

// Feeds returns the assets quoted directly by oracle networks.
func Feeds() []Asset {
	return filter(func(i info) bool { return i.kind == KindFeed })
}

// Signed returns the assets included in a commitment, in declaration order.
func Signed() []Asset {
	return filter(func(i info) bool { return i.signed })
}

func filter(keep func(info) bool) []Asset {
	var out []Asset
	for a := Asset(0); a < numAssets; a++ {
		if keep(table[a]) {
			out = append(out, a)
		}
	}
	return out
}

// Parse resolves a symbol such as "jUSDT". Symbols are case sensitive.
func Parse(symbol string) (Asset, error) {
	a, ok := bySymbol[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown asset %q", symbol)
	}
	return a, nil
}

// FromID resolves an asset identifier back to the asset.
func FromID(id *big.Int) (Asset, bool) {
	for a := Asset(0); a < numAssets; a++ {
		if ids[a].Cmp(id) == 0 {
			return a, true
		}
	}
	return 0, false
}

// Valid reports whether a is a declared asset.
func (a Asset) Valid() bool {
	return a >= 0 && a < numAssets
}

// String returns the asset symbol.
func (a Asset) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Asset(%d)", int(a))
	}
	return table[a].symbol
}

// ID returns a copy of the 256-bit asset identifier.
func (a Asset) ID() *big.Int {
	return new(big.Int).Set(ids[a])
}

// Kind returns how the asset is priced.
func (a Asset) Kind() Kind {
	return table[a].kind
}

// Signed reports whether the asset is part of the signed commitment.
func (a Asset) Signed() bool {
	return table[a].signed
}

// Source returns the feed that provides this asset's price input.
func (a Asset) Source() Asset {
	return table[a].source
}

// MarshalText implements encoding.TextMarshaler.
func (a Asset) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid asset %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Asset) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
