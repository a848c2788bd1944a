package aggregator

import "errors"

var (
	// ErrNoObservations indicates an empty median input.
	ErrNoObservations = errors.New("no observations")
	// ErrMissingAssetPrice indicates that no valid observation survived for an asset.
	ErrMissingAssetPrice = errors.New("missing asset price")
)
