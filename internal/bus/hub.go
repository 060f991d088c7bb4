// Package bus distributes event frames to live client connections. It tracks
// connections and room membership behind a single lock, preserving the
// single-writer semantics the registry needs under concurrent handlers.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"foundry-gateway/internal/models"
)

// Room names recognized by the real-time protocol.
const (
	RoomGitHubEvents = "github-events"
	RoomAzureEvents  = "azure-events"
)

// Hub maintains the connection registry and room membership, and delivers
// frames. Delivery is non-blocking; there is no guarantee for disconnected or
// slow clients.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*Connection
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Register adds a new connection with an empty room set and immediately
// delivers a welcome frame to that connection only.
func (h *Hub) Register() *Connection {
	conn := newConnection(uuid.New().String())

	h.mu.Lock()
	h.conns[conn.ID] = conn
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("client connected", "connection_id", conn.ID, "total_connections", total)

	conn.deliver(models.EventMessage{
		Type: "welcome",
		Payload: map[string]any{
			"message":      "Connected to AI Foundry backend",
			"connectionId": conn.ID,
		},
		Timestamp: time.Now(),
	})
	return conn
}

// Unregister removes the connection and its room memberships. Frames already
// queued to it are dropped silently.
func (h *Hub) Unregister(id, reason string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	total := len(h.conns)
	h.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	h.logger.Info("client disconnected", "connection_id", id, "reason", reason, "total_connections", total)
}

// OnMessage echoes the payload back to the originating connection, then
// broadcasts it to every other connection. The broadcast is deliberately
// unscoped: every client receives every user message regardless of rooms.
func (h *Hub) OnMessage(id string, payload map[string]any) {
	now := time.Now()

	h.mu.Lock()
	sender, ok := h.conns[id]
	others := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		if conn.ID != id {
			others = append(others, conn)
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	sender.deliver(models.EventMessage{
		Type:      "message",
		Payload:   map[string]any{"echo": payload},
		Timestamp: now,
	})

	broadcast := models.EventMessage{
		Type:      "broadcast",
		Payload:   map[string]any{"from": id, "message": payload},
		Timestamp: now,
	}
	for _, conn := range others {
		if !conn.deliver(broadcast) {
			h.logger.Debug("dropped frame for slow connection", "connection_id", conn.ID)
		}
	}
}

// AIChat answers a client chat request with a placeholder response frame
// delivered to the requester only.
func (h *Hub) AIChat(id, message, model string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	h.mu.Unlock()
	if !ok {
		return
	}

	if model == "" {
		model = "gpt-3.5-turbo"
	}

	conn.deliver(models.EventMessage{
		Type: "ai-response",
		Payload: map[string]any{
			"id":      fmt.Sprintf("chat-%d", time.Now().UnixMilli()),
			"message": fmt.Sprintf("AI Response to: %q", message),
			"model":   model,
			"note":    "This is a placeholder response. Configure a provider to enable AI features.",
		},
		Timestamp: time.Now(),
	})
}

// Join adds the connection to the room. Joining a room the connection is
// already in is a no-op.
func (h *Hub) Join(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[id]
	if !ok {
		return
	}
	conn.rooms[room] = struct{}{}
}

// Leave removes the connection from the room. Leaving an unjoined room is a
// no-op.
func (h *Hub) Leave(id, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[id]
	if !ok {
		return
	}
	delete(conn.rooms, room)
}

// BroadcastToRoom delivers the message to every connection whose room set
// contains the room at send time.
func (h *Hub) BroadcastToRoom(room string, msg models.EventMessage) {
	msg.Room = room
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	h.mu.Lock()
	members := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		if _, joined := conn.rooms[room]; joined {
			members = append(members, conn)
		}
	}
	h.mu.Unlock()

	for _, conn := range members {
		if !conn.deliver(msg) {
			h.logger.Debug("dropped frame for slow connection", "connection_id", conn.ID, "room", room)
		}
	}
}

// BroadcastGlobal delivers the message to all connections unconditionally.
func (h *Hub) BroadcastGlobal(msg models.EventMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	h.mu.Lock()
	all := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		all = append(all, conn)
	}
	h.mu.Unlock()

	for _, conn := range all {
		if !conn.deliver(msg) {
			h.logger.Debug("dropped frame for slow connection", "connection_id", conn.ID)
		}
	}
}
