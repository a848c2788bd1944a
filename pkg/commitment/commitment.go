package commitment

import (
	"crypto/ed25519"
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
)

const (
	// PriceDecimals is the fixed-point scale of committed prices.
	PriceDecimals = 9
	// KeyBits is the width of asset identifiers in the price dictionary.
	KeyBits = 256
)

// Signer signs the hash of a packed commitment.
type Signer interface {
	Sign(msg []byte) []byte
	PublicKey() ed25519.PublicKey
}

// ScalePrice converts a decimal price to 1e9 fixed point.
func ScalePrice(price decimal.Decimal) (*big.Int, error) {
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidPrice, price)
	}
	return price.Shift(PriceDecimals).Round(0).BigInt(), nil
}

// UnscalePrice converts a 1e9 fixed-point price back to a decimal.
func UnscalePrice(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, -PriceDecimals)
}

// Entry is one asset price at 1e9 scale.
type Entry struct {
	ID    *big.Int
	Price *big.Int
}

// Commitment is the unsigned content of one tick.
type Commitment struct {
	Timestamp uint32
	Entries   []Entry // ascending by ID
}

// FromPrices builds a commitment from consensus prices. Only signed assets
// are included.
func FromPrices(timestamp uint32, prices aggregator.PriceSet) (*Commitment, error) {
	c := &Commitment{Timestamp: timestamp}
	for _, a := range prices.Sorted() {
		if !a.Signed() {
			continue
		}
		v, err := ScalePrice(prices[a])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		c.Entries = append(c.Entries, Entry{ID: a.ID(), Price: v})
	}
	if len(c.Entries) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrIncompletePackaging)
	}
	return c, nil
}

// Assets returns the known assets in the commitment in dictionary order.
func (c *Commitment) Assets() []assets.Asset {
	out := make([]assets.Asset, 0, len(c.Entries))
	for _, e := range c.Entries {
		if a, ok := assets.FromID(e.ID); ok {
			out = append(out, a)
		}
	}
	return out
}

// Price returns the scaled price stored for id.
func (c *Commitment) Price(id *big.Int) (*big.Int, bool) {
	for _, e := range c.Entries {
		if e.ID.Cmp(id) == 0 {
			return e.Price, true
		}
	}
	return nil, false
}

// Dict builds the asset id -> coins dictionary.
func (c *Commitment) Dict() (*cell.Dictionary, error) {
	d := cell.NewDict(KeyBits)
	for _, e := range c.Entries {
		key := cell.BeginCell().MustStoreBigUInt(e.ID, KeyBits).EndCell()
		val := cell.BeginCell()
		if err := val.StoreBigCoins(e.Price); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPrice, e.ID, err)
		}
		if err := d.Set(key, val.EndCell()); err != nil {
			return nil, fmt.Errorf("set %s: %w", e.ID, err)
		}
	}
	return d, nil
}

// Pack serializes the commitment as uint32 timestamp followed by the dictionary.
func (c *Commitment) Pack() (*cell.Cell, error) {
	if len(c.Entries) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrIncompletePackaging)
	}
	d, err := c.Dict()
	if err != nil {
		return nil, err
	}
	return cell.BeginCell().
		MustStoreUInt(uint64(c.Timestamp), 32).
		MustStoreDict(d).
		EndCell(), nil
}

// Unpack decodes a packed commitment cell.
func Unpack(packed *cell.Cell) (*Commitment, error) {
	s := packed.BeginParse()
	ts, err := s.LoadUInt(32)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformedCommitment, err)
	}
	d, err := s.LoadDict(KeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %w", ErrMalformedCommitment, err)
	}

	c := &Commitment{Timestamp: uint32(ts)}
	for _, kv := range d.All() {
		id, err := kv.Key.BeginParse().LoadBigUInt(KeyBits)
		if err != nil {
			return nil, fmt.Errorf("%w: key: %w", ErrMalformedCommitment, err)
		}
		price, err := kv.Value.BeginParse().LoadBigCoins()
		if err != nil {
			return nil, fmt.Errorf("%w: value of %s: %w", ErrMalformedCommitment, id, err)
		}
		c.Entries = append(c.Entries, Entry{ID: id, Price: price})
	}
	sort.Slice(c.Entries, func(i, j int) bool { return c.Entries[i].ID.Cmp(c.Entries[j].ID) < 0 })
	return c, nil
}

// Signed is a packed commitment with the oracle's signature over its hash.
type Signed struct {
	Commitment *Commitment
	Packed     *cell.Cell
	Signature  []byte
	PublicKey  ed25519.PublicKey
}

// Sign packs c and signs the cell hash.
func Sign(c *Commitment, signer Signer) (*Signed, error) {
	packed, err := c.Pack()
	if err != nil {
		return nil, err
	}
	return &Signed{
		Commitment: c,
		Packed:     packed,
		Signature:  signer.Sign(packed.Hash()),
		PublicKey:  signer.PublicKey(),
	}, nil
}

// Verify checks the signature against the packed cell hash.
func (s *Signed) Verify() error {
	if len(s.PublicKey) != ed25519.PublicKeySize || !ed25519.Verify(s.PublicKey, s.Packed.Hash(), s.Signature) {
		return ErrInvalidSignature
	}
	return nil
}
