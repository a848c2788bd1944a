package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evaafi/merkle-oracles-pub/pkg/commitment"
	"github.com/evaafi/merkle-oracles-pub/pkg/logging"
	"github.com/evaafi/merkle-oracles-pub/pkg/pipeline"
)

// WebSocketHub pushes every new commitment to connected clients.
type WebSocketHub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*WebSocketClient]bool

	updates chan *pipeline.Result

	ctx    context.Context
	cancel context.CancelFunc
}

// WebSocketClient represents a connected WebSocket client.
type WebSocketClient struct {
	conn            *websocket.Conn
	send            chan []byte
	hub             *WebSocketHub
	subscribedAll   bool
	subscribedAsset map[string]bool
	mu              sync.RWMutex
}

// WebSocketMessage represents a client message.
type WebSocketMessage struct {
	Type    string   `json:"type"`    // "subscribe", "unsubscribe", "ping"
	Symbols []string `json:"symbols"` // asset symbols, or "*"
}

// CommitmentMessage is sent to clients after every tick.
type CommitmentMessage struct {
	Type       string                `json:"type"` // "commitment"
	Tick       uint64                `json:"tick"`
	Commitment commitment.DataToPush `json:"commitment"`
	Prices     []PriceData           `json:"prices"`
}

// NewWebSocketHub creates a hub. Its broadcast loop runs until Stop.
func NewWebSocketHub(logger *logging.Logger) *WebSocketHub {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &WebSocketHub{
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*WebSocketClient]bool),
		updates: make(chan *pipeline.Result, 16),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.broadcastUpdates()
	return h
}

// Stop stops broadcasting and disconnects every client.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// SendUpdate queues res for broadcast without blocking the signing loop.
func (h *WebSocketHub) SendUpdate(res *pipeline.Result) {
	select {
	case h.updates <- res:
	default:
		h.logger.Warn("Update channel full, dropping commitment update", "tick", res.Tick)
	}
}

func (h *WebSocketHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &WebSocketClient{
		conn:            conn,
		send:            make(chan []byte, 64),
		hub:             h,
		subscribedAll:   true,
		subscribedAsset: make(map[string]bool),
	}
	h.registerClient(client)

	go client.writePump()
	go client.readPump()

	h.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr().String())
}

func (h *WebSocketHub) registerClient(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *WebSocketHub) unregisterClient(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocketHub) broadcastUpdates() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case res := <-h.updates:
			h.broadcast(res)
		}
	}
}

func (h *WebSocketHub) broadcast(res *pipeline.Result) {
	prices := pricesResponse(res).Prices
	data, err := json.Marshal(CommitmentMessage{
		Type:       "commitment",
		Tick:       res.Tick,
		Commitment: res.Data,
		Prices:     prices,
	})
	if err != nil {
		h.logger.Error("Failed to marshal commitment update", "error", err)
		return
	}

	symbols := make([]string, len(prices))
	for i, p := range prices {
		symbols[i] = p.Symbol
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.shouldReceive(symbols) {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.logger.Warn("Client send buffer full, skipping update")
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket error", "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg WebSocketMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.Symbols)
	case "unsubscribe":
		c.unsubscribe(msg.Symbols)
	case "ping":
		c.sendPong()
	default:
		c.hub.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

func (c *WebSocketClient) subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(symbols) == 0 || (len(symbols) == 1 && symbols[0] == "*") {
		c.subscribedAll = true
		c.subscribedAsset = make(map[string]bool)
		return
	}
	c.subscribedAll = false
	for _, s := range symbols {
		c.subscribedAsset[s] = true
	}
}

func (c *WebSocketClient) unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(symbols) == 0 || (len(symbols) == 1 && symbols[0] == "*") {
		c.subscribedAll = false
		c.subscribedAsset = make(map[string]bool)
		return
	}
	for _, s := range symbols {
		delete(c.subscribedAsset, s)
	}
}

// shouldReceive reports whether any of symbols is subscribed.
func (c *WebSocketClient) shouldReceive(symbols []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subscribedAll {
		return true
	}
	for _, s := range symbols {
		if c.subscribedAsset[s] {
			return true
		}
	}
	return false
}

func (c *WebSocketClient) sendPong() {
	data, _ := json.Marshal(map[string]string{"type": "pong"})
	select {
	case c.send <- data:
	default:
	}
}
