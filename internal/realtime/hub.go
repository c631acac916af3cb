package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks the sockets connected to this instance and the rooms they joined.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With().Str("component", "realtime-hub").Logger(),
	}
}

func (h *Hub) Join(c *Client, rooms ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range rooms {
		members, ok := h.rooms[room]
		if !ok {
			members = make(map[*Client]struct{})
			h.rooms[room] = members
		}
		members[c] = struct{}{}
		c.rooms = append(c.rooms, room)
	}
}

// Leave removes the client from all of its rooms and closes its send buffer.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.rooms = nil
	c.closeOnce.Do(func() { close(c.send) })
}

// Broadcast hands the message to every client in its rooms and returns how many took it.
// A client whose buffer is full misses the message.
func (h *Hub) Broadcast(msg Message) int {
	raw, err := Encode(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("event", msg.Event).Msg("Dropping unencodable message")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*Client]struct{})
	delivered := 0
	for _, room := range msg.Rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.send <- raw:
				delivered++
			default:
				h.logger.Warn().Str("client_id", c.id).Str("room", room).Str("event", msg.Event).Msg("Client buffer full, message dropped")
			}
		}
	}
	return delivered
}

// Publish delivers to this instance only.
func (h *Hub) Publish(_ context.Context, msg Message) error {
	h.Broadcast(msg)
	return nil
}

func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
