package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/market-dashboard/internal/cache"
)

// client wraps a websocket connection with a write lock. View refreshes
// arrive from each view's poll goroutine, so several broadcasts can target
// the same connection at once; gorilla/websocket allows only one concurrent
// writer per connection.
type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub pushes view refreshes to connected websocket clients so the dashboard
// never waits for its own poll to notice a change.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *Hub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = &client{conn: conn}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

type viewUpdate struct {
	View      string    `json:"view"`
	UserID    string    `json:"userId,omitempty"`
	Data      any       `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BroadcastView sends a refreshed snapshot to every client, dropping
// connections that fail to write. Safe to call from any number of
// goroutines.
func (h *Hub) BroadcastView(key cache.Key, data any) {
	msg := viewUpdate{
		View:      string(key.View),
		UserID:    key.UserID,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			h.Remove(c.conn)
		}
	}
}
