// Package sources defines the contract shared by the oracle network verifiers.
package sources

import "errors"

var (
	// ErrStaleData indicates a carried timestamp outside the freshness window.
	ErrStaleData = errors.New("stale data")
	// ErrMissingFeed indicates that a requested feed is absent from a verified update.
	ErrMissingFeed = errors.New("missing feed")
	// ErrInsufficientSignatures indicates that a signature threshold was not met.
	ErrInsufficientSignatures = errors.New("insufficient signatures")
	// ErrInvalidSigner indicates a signer outside the expected registry or service.
	ErrInvalidSigner = errors.New("invalid signer")
	// ErrUnsupportedFormat indicates unexpected magic, version, type or length in a binary payload.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrProofMismatch indicates that a recomputed Merkle root disagrees with the attested one.
	ErrProofMismatch = errors.New("proof mismatch")
	// ErrSourceUnavailable indicates that every attempt against a network or chain endpoint failed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrUnexpectedStatus indicates an unexpected HTTP status code.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status code")
	// ErrInvalidResponse indicates a response that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrUnknownSource indicates a verifier name with no registered factory.
	ErrUnknownSource = errors.New("unknown source")
	// ErrNoFeedsConfigured indicates a verifier with nothing to fetch.
	ErrNoFeedsConfigured = errors.New("no feeds configured")
)
