package feed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vend_go/internal/event"
	"vend_go/internal/infra"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// envelope is the wire format of one feed message.
type envelope struct {
	Type string      `json:"type"`
	Data event.Event `json:"data"`
}

// Hub fans engine events out to websocket subscribers (external
// indexers). Slow or broken subscribers are dropped, never waited on:
// the feed is best-effort, the journal is the durable log.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Indexers connect from anywhere; the feed is read-only.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the connection and subscribes it to the feed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("feed upgrade failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	infra.GlobalMetrics.IncrementFeedClients()

	slog.Info("feed client connected", slog.String("remote", conn.RemoteAddr().String()))

	// Reader loop: subscribers send nothing meaningful, but reading is
	// required to process control frames and notice closure.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Keepalive pings.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for range ticker.C {
			if !h.has(conn) {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Publish broadcasts one event to every subscriber.
func (h *Hub) Publish(ev event.Event) {
	msg, err := json.Marshal(envelope{Type: ev.GetType(), Data: ev})
	if err != nil {
		slog.Error("feed marshal failed", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			delete(h.clients, conn)
			conn.Close()
			infra.GlobalMetrics.DecrementFeedClients()
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
		infra.GlobalMetrics.DecrementFeedClients()
	}
}

func (h *Hub) has(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[conn]
	return ok
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		infra.GlobalMetrics.DecrementFeedClients()
	}
}
