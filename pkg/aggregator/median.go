// Package aggregator reduces per-source observations to one consensus price per asset.
package aggregator

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Median sorts a copy of xs and returns the middle element, or the mean of the
// two middle elements for even lengths.
func Median(xs []decimal.Decimal) (decimal.Decimal, error) {
	n := len(xs)
	if n == 0 {
		return decimal.Zero, fmt.Errorf("%w", ErrNoObservations)
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, xs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	if n%2 == 1 {
		return sorted[n/2], nil
	}
	return sorted[n/2-1].Add(sorted[n/2]).Div(two), nil
}

// MedianBig is Median over integers. The even case truncates (a+b)/2.
func MedianBig(xs []*big.Int) (*big.Int, error) {
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("%w", ErrNoObservations)
	}

	sorted := make([]*big.Int, n)
	copy(sorted, xs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cmp(sorted[j]) < 0 })

	lo, hi := sorted[(n-1)/2], sorted[n/2]
	sum := new(big.Int).Add(lo, hi)
	return sum.Quo(sum, big.NewInt(2)), nil
}
