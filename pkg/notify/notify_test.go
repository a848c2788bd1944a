package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
)

type recordingTransport struct {
	mu    sync.Mutex
	texts []string
	block chan struct{}
}

func (r *recordingTransport) Name() string { return "recording" }

func (r *recordingTransport) Send(_ context.Context, text string, _ Message) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingTransport) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestDispatcher_DeliversWithPrefix(t *testing.T) {
	rec := &recordingTransport{}
	d := NewDispatcher(DispatcherConfig{Prefix: "[oracle-1]", Transports: []Transport{rec}, QueueSize: 4})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.Notify(ctx, Warnf("pyth", "guardian %s is not registered", "0xabc")))
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, []string{"[oracle-1] [pyth] guardian 0xabc is not registered"}, rec.snapshot())
}

func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	rec := &recordingTransport{block: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{Transports: []Transport{rec}, QueueSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// First message is picked up by Run and blocks in the transport, the
	// second fills the queue, the third must be rejected immediately.
	require.NoError(t, d.Notify(ctx, Message{Text: "1"}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Notify(ctx, Message{Text: "2"}))

	start := time.Now()
	err := d.Notify(ctx, Message{Text: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(rec.block)
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, []string{"1", "2"}, rec.snapshot())

	assert.ErrorIs(t, d.Notify(ctx, Message{Text: "4"}), ErrDispatcherClosed)
}

func TestTelegram_Send(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, "123:abc", "-100", srv.Client())
	require.NoError(t, tg.Send(context.Background(), "hello", Message{}))

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "-100", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.Header.Get("X-Auth"))
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, map[string]string{"X-Auth": "token"}, srv.Client())
	err := wh.Send(context.Background(), "x", Errorf("supra", "down"))
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestLogTransport_Send(t *testing.T) {
	var buf bytes.Buffer
	lt := LogTransport{Logger: logging.New(&buf, "json")}

	require.NoError(t, lt.Send(context.Background(), "", Errorf("pyth", "guardian %d invalid", 4)))
	assert.Equal(t, "log", lt.Name())
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "guardian 4 invalid")
	assert.Contains(t, buf.String(), `"source":"pyth"`)
}
