package commitment

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Status values of DataToPush.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DataToPush is the published JSON form of a signed commitment.
type DataToPush struct {
	Status       string   `json:"status"`
	Timestamp    uint32   `json:"timestamp"`
	PackedPrices string   `json:"packedPrices"` // hex BOC
	Signature    string   `json:"signature"`
	Assets       []string `json:"assets"` // decimal asset ids
	PublicKey    string   `json:"publicKey"`
}

// NewDataToPush renders s for publication.
func NewDataToPush(s *Signed) DataToPush {
	ids := make([]string, len(s.Commitment.Entries))
	for i, e := range s.Commitment.Entries {
		ids[i] = e.ID.String()
	}
	return DataToPush{
		Status:       StatusOK,
		Timestamp:    s.Commitment.Timestamp,
		PackedPrices: hex.EncodeToString(s.Packed.ToBOC()),
		Signature:    hex.EncodeToString(s.Signature),
		Assets:       ids,
		PublicKey:    hex.EncodeToString(s.PublicKey),
	}
}

// Decode parses the packed cell and checks it against the listed fields and
// the signature.
func (d DataToPush) Decode() (*Signed, error) {
	if d.Status != StatusOK {
		return nil, fmt.Errorf("%w: status %q", ErrMalformedCommitment, d.Status)
	}
	boc, err := hex.DecodeString(d.PackedPrices)
	if err != nil {
		return nil, fmt.Errorf("%w: packedPrices: %w", ErrMalformedCommitment, err)
	}
	packed, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("%w: packedPrices: %w", ErrMalformedCommitment, err)
	}
	sig, err := hex.DecodeString(d.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %w", ErrMalformedCommitment, err)
	}
	pub, err := hex.DecodeString(d.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: publicKey: %w", ErrMalformedCommitment, err)
	}

	c, err := Unpack(packed)
	if err != nil {
		return nil, err
	}
	if c.Timestamp != d.Timestamp {
		return nil, fmt.Errorf("%w: timestamp %d does not match packed %d", ErrMalformedCommitment, d.Timestamp, c.Timestamp)
	}
	if len(d.Assets) != len(c.Entries) {
		return nil, fmt.Errorf("%w: %d assets listed, %d packed", ErrMalformedCommitment, len(d.Assets), len(c.Entries))
	}
	for _, s := range d.Assets {
		id, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("%w: asset id %q", ErrMalformedCommitment, s)
		}
		if _, ok := c.Price(id); !ok {
			return nil, fmt.Errorf("%w: asset %s not packed", ErrMalformedCommitment, s)
		}
	}

	signed := &Signed{Commitment: c, Packed: packed, Signature: sig, PublicKey: ed25519.PublicKey(pub)}
	if err := signed.Verify(); err != nil {
		return nil, err
	}
	return signed, nil
}

// OracleCommitment returns the input BuildRequest needs for this oracle.
func (s *Signed) OracleCommitment(id uint32) OracleCommitment {
	return OracleCommitment{ID: id, Packed: s.Packed, Signature: s.Signature}
}
