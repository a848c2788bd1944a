package redstone

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/config"
	"github.com/evaafi/merkle-oracles-pub/pkg/sources"
)

const testService = "redstone-primary-prod"

var testNow = time.UnixMilli(1_720_000_000_000)

func newSigners(t *testing.T, n int) []*ecdsa.PrivateKey {
	t.Helper()
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k
	}
	return keys
}

func signPackage(t *testing.T, key *ecdsa.PrivateKey, feedID, value string, ts time.Time) SignedDataPackage {
	t.Helper()
	p := SignedDataPackage{
		DataPoints:            []DataPoint{{DataFeedID: feedID, Value: decimal.RequireFromString(value)}},
		TimestampMilliseconds: ts.UnixMilli(),
		SignerAddress:         crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
	msg, err := p.Serialize(8)
	require.NoError(t, err)
	sig, err := crypto.Sign(crypto.Keccak256(msg), key)
	require.NoError(t, err)
	sig[64] += 27
	p.Signature = base64.StdEncoding.EncodeToString(sig)
	return p
}

func registryOf(keys []*ecdsa.PrivateKey, service string) map[common.Address]string {
	out := make(map[common.Address]string)
	for _, k := range keys {
		out[crypto.PubkeyToAddress(k.PublicKey)] = service
	}
	return out
}

func newTestSource(t *testing.T, gateways []string, signers map[string]string, registryURL string) *Source {
	t.Helper()
	if len(gateways) == 0 {
		gateways = []string{"http://unused"}
	}
	src, err := New(config.RedstoneConfig{
		Gateways:      gateways,
		DataServiceID: testService,
		Feeds:         []string{"TON", "USDT"},
		UniqueSigners: 3,
		Decimals:      8,
		RegistryURL:   registryURL,
		Signers:       signers,
	}, sources.Options{
		Now:   func() time.Time { return testNow },
		Retry: config.RetryConfig{Attempts: 1},
	})
	require.NoError(t, err)
	return src
}

func fullResponse(t *testing.T, keys []*ecdsa.PrivateKey) Response {
	t.Helper()
	ton := []string{"2.40", "2.42", "2.50"}
	usdt := []string{"1.0001", "0.9999", "1.0000"}
	resp := Response{}
	for i, k := range keys {
		resp["TON"] = append(resp["TON"], signPackage(t, k, "TON", ton[i], testNow.Add(-2*time.Second)))
		resp["USDT"] = append(resp["USDT"], signPackage(t, k, "USDT", usdt[i], testNow.Add(-time.Second)))
	}
	return resp
}

func TestSerialize_Layout(t *testing.T) {
	p := SignedDataPackage{
		DataPoints: []DataPoint{
			{DataFeedID: "USDT", Value: decimal.RequireFromString("1")},
			{DataFeedID: "TON", Value: decimal.RequireFromString("2.42")},
		},
		TimestampMilliseconds: 0x010203040506,
	}
	msg, err := p.Serialize(8)
	require.NoError(t, err)
	require.Len(t, msg, 2*64+6+4+3)

	// Points are sorted by feed id.
	assert.Equal(t, "TON", string(msg[:3]))
	assert.Equal(t, byte(0), msg[3])
	assert.Equal(t, "USDT", string(msg[64:68]))

	assert.Equal(t, "242000000", new(big.Int).SetBytes(msg[32:64]).String())

	tail := msg[128:]
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, tail[:6])
	assert.Equal(t, []byte{0, 0, 0, 32}, tail[6:10])
	assert.Equal(t, []byte{0, 0, 2}, tail[10:13])
}

func TestRecoverSigner(t *testing.T) {
	key := newSigners(t, 1)[0]
	p := signPackage(t, key, "TON", "2.42", testNow)

	addr, err := p.RecoverSigner(8)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	p.DataPoints[0].Value = decimal.RequireFromString("2.43")
	addr, err = p.RecoverSigner(8)
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestVerify_Median(t *testing.T) {
	keys := newSigners(t, 3)
	src := newTestSource(t, nil, nil, "")

	obs, err := src.Verify(context.Background(), fullResponse(t, keys), registryOf(keys, testService))
	require.NoError(t, err)
	require.Len(t, obs, 2)

	assert.Equal(t, assets.TON, obs[0].Asset)
	assert.True(t, decimal.RequireFromString("2.42").Equal(obs[0].Value))
	assert.True(t, obs[0].Valid)
	assert.Equal(t, testNow.Add(-2*time.Second), obs[0].PublishTime)
	assert.True(t, decimal.RequireFromString("1.0000").Equal(obs[1].Value))
}

func TestVerify_WrongServiceIsFatal(t *testing.T) {
	keys := newSigners(t, 3)
	registry := registryOf(keys, testService)
	registry[crypto.PubkeyToAddress(keys[1].PublicKey)] = "redstone-avalanche-prod"

	src := newTestSource(t, nil, nil, "")
	obs, err := src.Verify(context.Background(), fullResponse(t, keys), registry)
	assert.ErrorIs(t, err, sources.ErrInvalidSigner)
	assert.Nil(t, obs)
}

func TestVerify_UnknownSignerIsFatal(t *testing.T) {
	keys := newSigners(t, 3)
	src := newTestSource(t, nil, nil, "")

	_, err := src.Verify(context.Background(), fullResponse(t, keys), registryOf(keys[:2], testService))
	assert.ErrorIs(t, err, sources.ErrInvalidSigner)
}

func TestVerify_StalePackageRejectsFeed(t *testing.T) {
	keys := newSigners(t, 3)
	resp := fullResponse(t, keys)
	resp["TON"][0] = signPackage(t, keys[0], "TON", "2.40", testNow.Add(-31*time.Second))

	src := newTestSource(t, nil, nil, "")
	obs, err := src.Verify(context.Background(), resp, registryOf(keys, testService))
	assert.ErrorIs(t, err, sources.ErrStaleData)
	require.Len(t, obs, 2)
	assert.False(t, obs[0].Valid)
	assert.True(t, obs[1].Valid)
}

func TestVerify_NotEnoughSigners(t *testing.T) {
	keys := newSigners(t, 3)
	resp := fullResponse(t, keys)
	resp["USDT"] = resp["USDT"][:2]

	src := newTestSource(t, nil, nil, "")
	obs, err := src.Verify(context.Background(), resp, registryOf(keys, testService))
	assert.ErrorIs(t, err, sources.ErrInsufficientSignatures)
	require.Len(t, obs, 1)
	assert.Equal(t, assets.TON, obs[0].Asset)
}

func TestVerify_OneValuePerSigner(t *testing.T) {
	keys := newSigners(t, 3)
	resp := fullResponse(t, keys)
	// keys[0] floods TON with older outliers around its newest package.
	resp["TON"] = append([]SignedDataPackage{
		signPackage(t, keys[0], "TON", "9.00", testNow.Add(-5*time.Second)),
		signPackage(t, keys[0], "TON", "9.10", testNow.Add(-4*time.Second)),
	}, resp["TON"]...)
	resp["TON"] = append(resp["TON"], signPackage(t, keys[0], "TON", "9.20", testNow.Add(-3*time.Second)))

	src := newTestSource(t, nil, nil, "")
	obs, err := src.Verify(context.Background(), resp, registryOf(keys, testService))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.True(t, decimal.RequireFromString("2.42").Equal(obs[0].Value), obs[0].Value.String())
	assert.Equal(t, testNow.Add(-2*time.Second), obs[0].PublishTime)
}

func TestVerify_RepeatedSignerDoesNotMeetQuorum(t *testing.T) {
	keys := newSigners(t, 3)
	resp := fullResponse(t, keys)
	resp["USDT"] = []SignedDataPackage{
		signPackage(t, keys[0], "USDT", "1.0001", testNow.Add(-time.Second)),
		signPackage(t, keys[0], "USDT", "1.0002", testNow.Add(-2*time.Second)),
		signPackage(t, keys[1], "USDT", "0.9999", testNow.Add(-time.Second)),
	}

	src := newTestSource(t, nil, nil, "")
	obs, err := src.Verify(context.Background(), resp, registryOf(keys, testService))
	assert.ErrorIs(t, err, sources.ErrInsufficientSignatures)
	require.Len(t, obs, 1)
	assert.Equal(t, assets.TON, obs[0].Asset)
}

func TestFetch_GatewayFailoverAndRegistry(t *testing.T) {
	keys := newSigners(t, 3)
	resp := fullResponse(t, keys)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data-packages/latest/"+testService, r.URL.Path)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer gateway.Close()

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nodes := map[string]interface{}{}
		for i, k := range keys {
			nodes[string(rune('a'+i))] = map[string]string{
				"dataServiceId": testService,
				"evmAddress":    crypto.PubkeyToAddress(k.PublicKey).Hex(),
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"nodes": nodes})
	}))
	defer registry.Close()

	src := newTestSource(t, []string{down.URL, gateway.URL}, nil, registry.URL)
	obs, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 2)
}

func TestStaticRegistry(t *testing.T) {
	keys := newSigners(t, 1)
	addr := crypto.PubkeyToAddress(keys[0].PublicKey).Hex()

	reg, err := NewStaticRegistry(map[string]string{addr: testService})
	require.NoError(t, err)
	m, err := reg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testService, m[common.HexToAddress(addr)])

	_, err = NewStaticRegistry(map[string]string{"nope": testService})
	assert.ErrorIs(t, err, sources.ErrInvalidSigner)
}
