package pyth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// ErrDuplicateGuardian marks a signature from a guardian already counted in the same VAA.
var ErrDuplicateGuardian = fmt.Errorf("%w: duplicate guardian signature", sources.ErrInvalidSigner)

// GuardianSet is the fixed Wormhole guardian registry.
type GuardianSet struct {
	members  map[common.Address]struct{}
	size     int
	minValid int
}

// InvalidSignature describes a signature that did not recover to a guardian.
type InvalidSignature struct {
	Index   uint8
	Address string
	Err     error
}

// NewGuardianSet builds a registry from hex addresses. minValid is the
// absolute floor of registry-matching signatures.
func NewGuardianSet(addresses []string, minValid int) (*GuardianSet, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: empty guardian set", sources.ErrInvalidSigner)
	}
	members := make(map[common.Address]struct{}, len(addresses))
	for _, a := range addresses {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%w: guardian %q", sources.ErrInvalidSigner, a)
		}
		members[common.HexToAddress(a)] = struct{}{}
	}
	return &GuardianSet{members: members, size: len(addresses), minValid: minValid}, nil
}

// Size returns the registry size.
func (g *GuardianSet) Size() int { return g.size }

// Threshold is the number of registry-matching signatures required:
// max(ceil(2G/3), minValid).
func (g *GuardianSet) Threshold() int {
	t := (2*g.size + 2) / 3
	if g.minValid > t {
		t = g.minValid
	}
	return t
}

// Contains reports whether addr is a registered guardian.
func (g *GuardianSet) Contains(addr common.Address) bool {
	_, ok := g.members[addr]
	return ok
}

// Verify recovers every signature over keccak256(keccak256(body)) and scores
// them against the registry. Each guardian counts once: a repeated index or a
// second signature recovering to an already counted guardian is rejected.
// onInvalid is called for each rejected signature and must not block.
func (g *GuardianSet) Verify(vaa *VAA, onInvalid func(InvalidSignature)) (int, error) {
	present := len(vaa.Signatures)
	if 3*present < 2*g.size {
		return 0, fmt.Errorf("%w: %d signatures present out of %d guardians",
			sources.ErrInsufficientSignatures, present, g.size)
	}

	hash := crypto.Keccak256(crypto.Keccak256(vaa.Body))
	valid := 0
	seenIndex := make(map[uint8]struct{}, present)
	seenSigner := make(map[common.Address]struct{}, present)
	for _, s := range vaa.Signatures {
		if _, dup := seenIndex[s.Index]; dup {
			metrics.RecordGuardianSignature(false)
			if onInvalid != nil {
				onInvalid(InvalidSignature{Index: s.Index, Err: ErrDuplicateGuardian})
			}
			continue
		}
		seenIndex[s.Index] = struct{}{}

		sig := make([]byte, 65)
		copy(sig, s.Signature[:64])
		sig[64] = s.Signature[64] % 2

		pub, err := crypto.SigToPub(hash, sig)
		if err != nil {
			metrics.RecordGuardianSignature(false)
			if onInvalid != nil {
				onInvalid(InvalidSignature{Index: s.Index, Err: err})
			}
			continue
		}
		addr := crypto.PubkeyToAddress(*pub)
		if !g.Contains(addr) {
			metrics.RecordGuardianSignature(false)
			if onInvalid != nil {
				onInvalid(InvalidSignature{Index: s.Index, Address: addr.Hex(), Err: sources.ErrInvalidSigner})
			}
			continue
		}
		if _, dup := seenSigner[addr]; dup {
			metrics.RecordGuardianSignature(false)
			if onInvalid != nil {
				onInvalid(InvalidSignature{Index: s.Index, Address: addr.Hex(), Err: ErrDuplicateGuardian})
			}
			continue
		}
		seenSigner[addr] = struct{}{}
		metrics.RecordGuardianSignature(true)
		valid++
	}

	if need := g.Threshold(); valid < need {
		return valid, fmt.Errorf("%w: %d valid out of %d guardians, need %d",
			sources.ErrInsufficientSignatures, valid, g.size, need)
	}
	return valid, nil
}
