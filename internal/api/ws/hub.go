// Package ws relays live match updates to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// ClientMsg is the only message clients send
type ClientMsg struct {
	Type string `json:"type"` // ping
}

// Snapshots returns the cached current update, nil when there is none
type Snapshots interface {
	Latest(ctx context.Context) (*events.LiveMatchUpdate, error)
}

// client serializes writes; gorilla allows one concurrent writer per connection
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub fans every live update out to all connected clients. A client receives the
// current snapshot on connect.
type Hub struct {
	log       *zap.Logger
	upgrader  websocket.Upgrader
	snapshots Snapshots

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *zap.Logger, snapshots Snapshots, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		log:       log,
		upgrader:  websocket.Upgrader{CheckOrigin: allowOrigin},
		snapshots: snapshots,
		clients:   make(map[*client]struct{}),
	}
}

func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	h.sendSnapshot(r.Context(), c)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "ping" {
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *client) {
	if h.snapshots == nil {
		return
	}
	u, err := h.snapshots.Latest(ctx)
	if err != nil {
		h.log.Warn("live snapshot", zap.Error(err))
		return
	}
	if u == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = c.write(b)
}

// Broadcast writes a serialized update to every client
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(payload); err != nil {
			h.log.Debug("ws write", zap.Error(err))
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
