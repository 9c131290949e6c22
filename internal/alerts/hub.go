package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantvn/signals/internal/metrics"
)

// allSymbols is the pseudo-symbol a client subscribes to for every
// signal regardless of symbol.
const allSymbols = "ALL"

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a connection may stay silent before the
	// read side declares it dead. Must exceed pingPeriod.
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub is the WebSocket subscriber registry. Clients connect, subscribe
// to symbols, and receive broadcasts. Broadcast iterates a snapshot of
// the subscriber set; a client whose buffer is full is removed after
// the broadcast completes, never blocking other deliveries.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	mu          sync.RWMutex
	clients     map[*Client]bool
	subscribers map[string]map[*Client]bool
}

// Client is one connected WebSocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.Mutex
	symbols map[string]bool
	closed  bool
}

// NewHub creates an empty subscriber registry. Metrics may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		metrics:     m,
		logger:      log.With().Str("component", "ws_hub").Logger(),
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]bool),
	}
}

// ServeWS upgrades an HTTP request and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 64),
		symbols: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClientsActive.Set(float64(count))
	}
	h.logger.Info().Int("clients", count).Msg("ws client connected")

	welcome, _ := json.Marshal(map[string]string{
		"type":    "connected",
		"message": "connected to signal feed",
	})
	client.trySend(welcome)

	go client.writePump()
	go client.readPump()
}

// Subscribe adds the client to the given symbols' subscriber sets.
func (h *Hub) Subscribe(c *Client, symbols []string) {
	h.mu.Lock()
	for _, symbol := range symbols {
		set, ok := h.subscribers[symbol]
		if !ok {
			set = make(map[*Client]bool)
			h.subscribers[symbol] = set
		}
		set[c] = true
	}
	h.mu.Unlock()

	c.mu.Lock()
	for _, symbol := range symbols {
		c.symbols[symbol] = true
	}
	current := make([]string, 0, len(c.symbols))
	for symbol := range c.symbols {
		current = append(current, symbol)
	}
	c.mu.Unlock()

	ack, _ := json.Marshal(map[string]interface{}{
		"type":    "subscribed",
		"symbols": current,
	})
	c.trySend(ack)
}

// Unsubscribe removes the client from the given symbols.
func (h *Hub) Unsubscribe(c *Client, symbols []string) {
	h.mu.Lock()
	for _, symbol := range symbols {
		if set, ok := h.subscribers[symbol]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.subscribers, symbol)
			}
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	for _, symbol := range symbols {
		delete(c.symbols, symbol)
	}
	c.mu.Unlock()
}

// Unregister removes a client entirely and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for symbol, set := range h.subscribers {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subscribers, symbol)
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WSClientsActive.Set(float64(count))
	}
	h.logger.Info().Int("clients", count).Msg("ws client disconnected")
}

// Broadcast delivers a payload to subscribers of the symbol and to
// "ALL" subscribers. Clients that cannot keep up are removed after the
// fan-out finishes.
func (h *Hub) Broadcast(symbol string, payload []byte) {
	h.mu.RLock()
	targets := make(map[*Client]bool)
	for c := range h.subscribers[symbol] {
		targets[c] = true
	}
	for c := range h.subscribers[allSymbols] {
		targets[c] = true
	}

	var failed []*Client
	for c := range targets {
		if !c.trySend(payload) {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.Unregister(c)
	}
}

// Send implements Sender: the whole message is pushed as JSON to the
// symbol's subscribers. The `to` identity is ignored; websocket
// delivery is broadcast by nature.
func (h *Hub) Send(_ context.Context, _ string, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(msg.Symbol, payload)
	return nil
}

// HubStats describes the current registry state.
type HubStats struct {
	Clients int      `json:"clients"`
	Symbols []string `json:"symbols"`
}

// GetStats returns connection statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := HubStats{Clients: len(h.clients)}
	for symbol := range h.subscribers {
		stats.Symbols = append(stats.Symbols, symbol)
	}
	return stats
}

// trySend queues a payload without blocking. A full buffer or a closed
// client counts as a failed delivery.
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

type clientCommand struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			c.hub.Subscribe(c, cmd.Symbols)
		case "unsubscribe":
			c.hub.Unsubscribe(c, cmd.Symbols)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
