package api

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/aggregator"
	"github.com/evaafi/merkle-oracles-pub/pkg/assets"
	"github.com/evaafi/merkle-oracles-pub/pkg/commitment"
	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
)

type testSigner struct{ key ed25519.PrivateKey }

func (s testSigner) Sign(msg []byte) []byte        { return ed25519.Sign(s.key, msg) }
func (s testSigner) PublicKey() ed25519.PublicKey { return s.key.Public().(ed25519.PublicKey) }

func testResult(t *testing.T, tick uint64) *pipeline.Result {
	t.Helper()
	prices := aggregator.PriceSet{
		assets.TON:  decimal.RequireFromString("2.42"),
		assets.USDT: decimal.RequireFromString("1"),
	}
	c, err := commitment.FromPrices(1700000000, prices)
	require.NoError(t, err)
	signed, err := commitment.Sign(c, testSigner{key: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{3}, 32))})
	require.NoError(t, err)
	return &pipeline.Result{
		Tick:    tick,
		Prices:  prices,
		Omitted: []assets.Asset{assets.TSTON, assets.STTON},
		Signed:  signed,
		Data:    commitment.NewDataToPush(signed),
	}
}

func TestServer_NoDataYet(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", 0, nil, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/v1/commitment", "/v1/prices"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Endpoints(t *testing.T) {
	api := NewServer(":0", time.Second, nil, nil)
	res := testResult(t, 5)
	api.Publish(res)

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/commitment")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var data commitment.DataToPush
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, res.Data, data)
	_, err = data.Decode()
	require.NoError(t, err)

	resp2, err := http.Get(srv.URL + "/v1/prices")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var prices PricesResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&prices))
	assert.Equal(t, uint64(5), prices.Tick)
	assert.Equal(t, uint32(1700000000), prices.Timestamp)
	require.Len(t, prices.Prices, 2)
	bySymbol := map[string]string{}
	for _, p := range prices.Prices {
		bySymbol[p.Symbol] = p.Price
	}
	assert.Equal(t, "2.42", bySymbol["TON"])
	assert.Equal(t, []string{"stTON", "tsTON"}, prices.Omitted)
}

func TestWebSocket_BroadcastsCommitments(t *testing.T) {
	hub := NewWebSocketHub(nil)
	api := NewServer(":0", time.Second, hub, nil)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()
	defer hub.Stop()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	api.Publish(testResult(t, 9))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg CommitmentMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "commitment", msg.Type)
	assert.Equal(t, uint64(9), msg.Tick)
	assert.Equal(t, commitment.StatusOK, msg.Commitment.Status)
	assert.Len(t, msg.Prices, 2)

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}

func TestWebSocketClient_Subscriptions(t *testing.T) {
	c := &WebSocketClient{subscribedAll: true, subscribedAsset: map[string]bool{}}
	assert.True(t, c.shouldReceive([]string{"TON"}))

	c.subscribe([]string{"stTON"})
	assert.False(t, c.shouldReceive([]string{"TON", "USDT"}))
	assert.True(t, c.shouldReceive([]string{"TON", "stTON"}))

	c.unsubscribe([]string{"stTON"})
	assert.False(t, c.shouldReceive([]string{"stTON"}))

	c.subscribe([]string{"*"})
	assert.True(t, c.shouldReceive(nil))
}
