package aggregator

import (
	"math/big"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMedian(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"single", []string{"2.42"}, "2.42"},
		{"pair", []string{"2.40", "2.50"}, "2.45"},
		{"odd unsorted", []string{"2.50", "2.40", "2.42"}, "2.42"},
		{"even unsorted", []string{"4", "1", "3", "2"}, "2.5"},
		{"duplicates", []string{"1", "1", "5"}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]decimal.Decimal, len(tt.in))
			for i, s := range tt.in {
				in[i] = d(s)
			}
			got, err := Median(in)
			require.NoError(t, err)
			assert.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestMedian_Empty(t *testing.T) {
	_, err := Median(nil)
	assert.ErrorIs(t, err, ErrNoObservations)

	_, err = MedianBig([]*big.Int{})
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []decimal.Decimal{d("3"), d("1"), d("2")}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, "3", in[0].String())
}

func TestMedian_PermutationInvariant(t *testing.T) {
	base := []decimal.Decimal{d("2.4"), d("2.42"), d("2.5"), d("1.9"), d("3.1"), d("2.42")}
	want, err := Median(base)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		perm := make([]decimal.Decimal, len(base))
		copy(perm, base)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		got, err := Median(perm)
		require.NoError(t, err)
		assert.True(t, want.Equal(got))
	}
}

func TestMedianBig(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		want int64
	}{
		{"single", []int64{7}, 7},
		{"odd", []int64{3, 1, 2}, 2},
		{"even truncates", []int64{1, 2}, 1},
		{"even", []int64{2420000000, 2400000000, 2500000000, 2430000000}, 2425000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := make([]*big.Int, len(tt.in))
			for i, v := range tt.in {
				in[i] = big.NewInt(v)
			}
			got, err := MedianBig(in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestMedianAggregator_Aggregate(t *testing.T) {
	now := time.Now()
	obs := []sources.Observation{
		{Source: "pyth", Asset: assets.TON, Value: d("2.40"), PublishTime: now, Valid: true},
		{Source: "redstone", Asset: assets.TON, Value: d("2.42"), PublishTime: now, Valid: true},
		{Source: "supra", Asset: assets.TON, Value: d("2.50"), PublishTime: now, Valid: true},
		{Source: "stale", Asset: assets.TON, Value: d("9.99"), PublishTime: now.Add(-time.Hour), Valid: false, Reason: sources.ErrStaleData},
		{Source: "pyth", Asset: assets.USDT, Value: d("1.001"), PublishTime: now, Valid: true},
		{Source: "supra", Asset: assets.USDT, Value: d("0.999"), PublishTime: now, Valid: true},
	}

	agg := NewMedianAggregator(logging.NewNoopLogger())
	prices, err := agg.Aggregate(obs)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingAssetPrice)
	assert.Contains(t, err.Error(), "USDC")

	assert.True(t, d("2.42").Equal(prices[assets.TON]))
	assert.True(t, d("1").Equal(prices[assets.USDT]))
	_, ok := prices[assets.USDC]
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	feeds := PriceSet{assets.TON: d("2.42"), assets.USDT: d("1.0001"), assets.USDC: d("0.9998")}
	signed := Resolve(feeds)

	assert.Len(t, signed, 4)
	assert.True(t, d("1.0001").Equal(signed[assets.JUSDT]))
	assert.True(t, d("0.9998").Equal(signed[assets.JUSDC]))
	_, hasUSDC := signed[assets.USDC]
	assert.False(t, hasUSDC)
	_, hasStTON := signed[assets.STTON]
	assert.False(t, hasStTON)
}

func TestPriceSet_Sorted(t *testing.T) {
	p := PriceSet{}
	for _, a := range assets.Signed() {
		p[a] = d("1")
	}
	sorted := p.Sorted()
	for i := 1; i < len(sorted); i++ {
		assert.Equal(t, -1, sorted[i-1].ID().Cmp(sorted[i].ID()))
	}
}
