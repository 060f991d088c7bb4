package bus

import (
	"sync"

	"foundry-gateway/internal/models"
)

// sendBufferSize bounds per-connection delivery queues. Broadcast never
// blocks: a frame that does not fit is dropped for that connection only.
const sendBufferSize = 32

// Connection is one live client known to the Hub. The Hub owns it
// exclusively; room membership is mutated only under the Hub's lock.
type Connection struct {
	ID string

	rooms map[string]struct{}

	mu     sync.Mutex
	closed bool
	send   chan models.EventMessage
}

func newConnection(id string) *Connection {
	return &Connection{
		ID:    id,
		rooms: make(map[string]struct{}),
		send:  make(chan models.EventMessage, sendBufferSize),
	}
}

// Events exposes the delivery queue the transport drains. The channel is
// closed when the connection is unregistered.
func (c *Connection) Events() <-chan models.EventMessage {
	return c.send
}

// deliver enqueues a frame without blocking. Returns false when the frame was
// dropped, either because the buffer was full or because the connection was
// already closed; a delivery racing a disconnect is a silent drop, never a
// panic.
func (c *Connection) deliver(msg models.EventMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
