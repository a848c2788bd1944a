package commitment

import (
	"crypto/ed25519"
	"fmt"
	"sort"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// MaxTimestampDelta is how old, in seconds, a commitment may be when the
// verifier checks it.
const MaxTimestampDelta = 180

// Verifier contract exit codes.
const (
	ErrCodeIncorrectSequence       = 40
	ErrCodeIncorrectProof          = 41
	ErrCodeNoSuchOracle            = 42
	ErrCodeIncorrectSignature      = 43
	ErrCodeIncorrectTimestamp      = 44
	ErrCodeNotEnoughData           = 45
	ErrCodeIncorrectSuggestedPrice = 46
)

// OracleKey is one registered oracle public key.
type OracleKey struct {
	ID        uint32
	PublicKey ed25519.PublicKey
}

// PackVerifierConfig builds uint32 count followed by a dictionary of
// oracle id -> 256-bit public key.
func PackVerifierConfig(keys []OracleKey) (*cell.Cell, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no oracles", ErrIncompletePackaging)
	}
	sorted := make([]OracleKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	d := cell.NewDict(32)
	for i, k := range sorted {
		if len(k.PublicKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: oracle %d public key is %d bytes", ErrIncompletePackaging, k.ID, len(k.PublicKey))
		}
		if i > 0 && sorted[i-1].ID == k.ID {
			return nil, fmt.Errorf("%w: duplicate oracle %d", ErrIncompletePackaging, k.ID)
		}
		key := cell.BeginCell().MustStoreUInt(uint64(k.ID), 32).EndCell()
		val := cell.BeginCell().MustStoreSlice(k.PublicKey, 256).EndCell()
		if err := d.Set(key, val); err != nil {
			return nil, fmt.Errorf("set oracle %d: %w", k.ID, err)
		}
	}

	return cell.BeginCell().
		MustStoreUInt(uint64(len(sorted)), 32).
		MustStoreDict(d).
		EndCell(), nil
}
