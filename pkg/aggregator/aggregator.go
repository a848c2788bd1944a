package aggregator

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/metrics"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

// PriceSet maps assets to consensus prices for one tick. Absent keys mean no
// valid price was produced.
type PriceSet map[assets.Asset]decimal.Decimal

// Sorted returns the assets present in the set, ordered by asset identifier.
func (p PriceSet) Sorted() []assets.Asset {
	out := make([]assets.Asset, 0, len(p))
	for a := range p {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().Cmp(out[j].ID()) < 0 })
	return out
}

// Clone returns a shallow copy.
func (p PriceSet) Clone() PriceSet {
	out := make(PriceSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Aggregator reduces observations to consensus prices.
type Aggregator interface {
	Aggregate(observations []sources.Observation) (PriceSet, error)
}

// MedianAggregator takes the median of the valid observations per feed.
type MedianAggregator struct {
	logger *logging.Logger
}

// Ensure MedianAggregator implements Aggregator interface.
var _ Aggregator = (*MedianAggregator)(nil)

// NewMedianAggregator creates a new median aggregator.
func NewMedianAggregator(logger *logging.Logger) *MedianAggregator {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &MedianAggregator{logger: logger}
}

// Aggregate computes the median per feed asset over valid observations.
// Invalid observations are discarded. Feeds with no valid observation are
// left out of the result and reported through a joined ErrMissingAssetPrice.
func (a *MedianAggregator) Aggregate(observations []sources.Observation) (PriceSet, error) {
	start := time.Now()
	defer func() {
		metrics.RecordAggregation("median", time.Since(start))
	}()

	byAsset := make(map[assets.Asset][]decimal.Decimal)
	for _, o := range observations {
		if !o.Valid {
			a.logger.Debug("Discarding invalid observation",
				"source", o.Source,
				"asset", o.Asset.String(),
				"value", o.Value.String(),
				"reason", fmt.Sprint(o.Reason))
			continue
		}
		byAsset[o.Asset] = append(byAsset[o.Asset], o.Value)
	}

	result := make(PriceSet)
	var missing []error
	for _, feed := range assets.Feeds() {
		median, err := Median(byAsset[feed])
		if err != nil {
			missing = append(missing, fmt.Errorf("%w: %s", ErrMissingAssetPrice, feed))
			continue
		}
		result[feed] = median
		a.logger.Debug("Consensus price",
			"asset", feed.String(),
			"price", median.String(),
			"observations", len(byAsset[feed]))
	}

	return result, errors.Join(missing...)
}

// Resolve expands feed consensus prices into the signed asset set. Alias
// assets copy their feed price; derived assets are filled in by the caller.
func Resolve(feeds PriceSet) PriceSet {
	out := make(PriceSet)
	for _, a := range assets.Signed() {
		if a.Kind() == assets.KindDerived {
			continue
		}
		if v, ok := feeds[a.Source()]; ok {
			out[a] = v
		}
	}
	return out
}
