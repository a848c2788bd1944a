// Package commitment packs, signs and proves per-tick price commitments as
// TON cells, and assembles multi-oracle verify requests.
package commitment

import "errors"

var (
	// ErrIncompletePackaging indicates assembly with missing oracles, assets or prices.
	ErrIncompletePackaging = errors.New("incomplete packaging")
	// ErrInvalidPrice indicates a price that cannot be stored as coins.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrInvalidSignature indicates a commitment signature that does not verify.
	ErrInvalidSignature = errors.New("invalid commitment signature")
	// ErrProofMismatch indicates a proof that does not resolve to the signed hash.
	ErrProofMismatch = errors.New("proof does not match commitment hash")
	// ErrMalformedCommitment indicates packed data that cannot be decoded.
	ErrMalformedCommitment = errors.New("malformed commitment")
)
