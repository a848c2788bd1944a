package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/notify"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func TestCheckFresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ttl := 30 * time.Second

	tests := []struct {
		name    string
		age     time.Duration
		wantErr bool
	}{
		{"fresh", 0, false},
		{"ttl minus one", ttl - time.Second, false},
		{"exactly ttl", ttl, false},
		{"ttl plus one", ttl + time.Second, true},
		{"future timestamp", -5 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFresh(now, now.Add(-tt.age), ttl)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrStaleData)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseSource_Observe(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBaseSource("test", Options{Now: func() time.Time { return now }})

	fresh := b.Observe(assets.TON, decimal.RequireFromString("2.42"), now.Add(-29*time.Second))
	assert.True(t, fresh.Valid)
	assert.NoError(t, fresh.Reason)
	assert.Equal(t, "test", fresh.Source)

	stale := b.Observe(assets.USDT, decimal.NewFromInt(1), now.Add(-31*time.Second))
	assert.False(t, stale.Valid)
	assert.ErrorIs(t, stale.Reason, ErrStaleData)

	rejected := b.Reject(assets.USDC, decimal.NewFromInt(1), now, ErrProofMismatch)
	assert.False(t, rejected.Valid)

	err := Rejections([]Observation{fresh, stale, rejected})
	assert.ErrorIs(t, err, ErrStaleData)
	assert.ErrorIs(t, err, ErrProofMismatch)
	assert.NoError(t, Rejections([]Observation{fresh}))
}

func TestRetry_WrapsSourceUnavailable(t *testing.T) {
	b := NewBaseSource("test", Options{Retry: config.RetryConfig{Attempts: 3, Delay: config.Duration(time.Millisecond)}})

	calls := 0
	boom := errors.New("boom")
	_, err := Retry(context.Background(), b, "fetch", func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestBaseSource_AlertIsFireAndForget(t *testing.T) {
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.MatchedBy(func(m notify.Message) bool {
		return m.Source == "pyth" && m.Level == notify.LevelWarn && m.Text == "guardian 0x1 rejected"
	})).Return(notify.ErrQueueFull).Once()

	b := NewBaseSource("pyth", Options{Notifier: n})
	assert.NotPanics(t, func() { b.Alert(context.Background(), "guardian %s rejected", "0x1") })
	n.AssertExpectations(t)
}

func TestRegistry(t *testing.T) {
	disabled := false
	Register("zz-test-on", nil, func(*config.SourcesConfig, Options) (Verifier, error) {
		return stubVerifier("zz-test-on"), nil
	})
	Register("zz-test-off", func(*config.SourcesConfig) bool { return disabled }, func(*config.SourcesConfig, Options) (Verifier, error) {
		return stubVerifier("zz-test-off"), nil
	})

	v, err := Create("zz-test-on", &config.SourcesConfig{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "zz-test-on", v.Name())

	_, err = Create("missing", &config.SourcesConfig{}, Options{})
	assert.ErrorIs(t, err, ErrUnknownSource)

	all, err := CreateEnabled(&config.SourcesConfig{}, Options{})
	require.NoError(t, err)
	var names []string
	for _, v := range all {
		names = append(names, v.Name())
	}
	assert.Contains(t, names, "zz-test-on")
	assert.NotContains(t, names, "zz-test-off")
}

type stubVerifier string

func (s stubVerifier) Name() string { return string(s) }

func (s stubVerifier) Fetch(context.Context) ([]Observation, error) { return nil, nil }
