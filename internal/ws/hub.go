package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"helpdesk-service/internal/models"
)

// Conn is the subset of *websocket.Conn the hub needs. Tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub maintains the registry of live connections and their room memberships.
// Room membership exists only while a connection is live; it is never cached
// elsewhere. Delivery is best-effort: a failed write closes the connection and
// the caller is never told. The read pump observes the close and runs the
// single teardown path (Unsubscribe, metrics, disconnect event).
type Hub struct {
	rooms map[string]map[Conn]bool
	conns map[Conn]*connState
	mu    sync.RWMutex
}

// connState serializes writes to one connection. gorilla/websocket permits a
// single concurrent writer, and publishes run on arbitrary request goroutines.
type connState struct {
	writeMu  sync.Mutex
	channels []string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]bool),
		conns: make(map[Conn]*connState),
	}
}

// Subscribe registers a connection under every channel in its subscription
// set. Called once, at connection establish.
func (h *Hub) Subscribe(conn Conn, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range channels {
		if _, ok := h.rooms[channel]; !ok {
			h.rooms[channel] = make(map[Conn]bool)
		}
		h.rooms[channel][conn] = true
	}
	h.conns[conn] = &connState{channels: channels}
}

// Unsubscribe removes a connection from every room it joined. Called once, at
// teardown, before the connection identity is released.
func (h *Hub) Unsubscribe(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.conns[conn]
	if !ok {
		return
	}
	for _, channel := range state.channels {
		if conns, ok := h.rooms[channel]; ok {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.rooms, channel)
			}
		}
	}
	delete(h.conns, conn)
}

// Publish delivers the event to every connection subscribed to at least one of
// the target channels, once per connection even when several channels match.
// Writes to one connection are serialized under its write lock; a failed write
// closes the connection and delivery to the rest continues.
func (h *Hub) Publish(channels []string, event models.SupportEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	targets := make(map[Conn]*connState)
	for _, channel := range channels {
		for conn := range h.rooms[channel] {
			targets[conn] = h.conns[conn]
		}
	}
	h.mu.RUnlock()

	for conn, state := range targets {
		state.writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, payload)
		state.writeMu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
		}
	}
}

// ConnCount reports the number of live connections in one room.
func (h *Hub) ConnCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}
