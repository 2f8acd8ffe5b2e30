// Package realtime keeps the process-wide registry of live connections and
// pushes events to them.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"socialnet/internal/model"
)

type Options struct {
	PingInterval time.Duration
	PingTimeout  time.Duration
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 3 * time.Second
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = 7 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Hub maps a user id to that user's open connections. A user may hold several
// connections at once; each gets its own copy of every event.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	opts  Options
	log   zerolog.Logger
}

func NewHub(opts Options, log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		opts:  opts.withDefaults(),
		log:   log,
	}
}

// Publish delivers event to every connection userID currently holds.
func (h *Hub) Publish(_ context.Context, recipientID string, event model.LiveEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal live event: %w", err)
	}
	h.Deliver(recipientID, payload)
	return nil
}

// Deliver queues payload on each of recipientID's connections and returns how
// many accepted it. A connection whose buffer is full misses the event.
func (h *Hub) Deliver(recipientID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[recipientID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.log.Warn().Str("user_id", recipientID).Str("conn_id", c.id).Msg("send buffer full, dropping event")
		}
	}
	return delivered
}

// Serve registers conn for userID and blocks until the connection drops or
// ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID string) {
	c := newClient(h, conn, userID)
	h.register(c)
	defer h.unregister(c)

	c.run(ctx)
}

// Connections reports how many connections userID holds.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
	n := len(room)
	h.mu.Unlock()

	h.log.Info().Str("user_id", c.userID).Str("conn_id", c.id).Int("connections", n).Msg("live connection opened")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.userID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.userID)
		}
	}
	h.mu.Unlock()

	h.log.Info().Str("user_id", c.userID).Str("conn_id", c.id).Msg("live connection closed")
}
