package signaling

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/meetrelay/backend/internal/room"
	"github.com/meetrelay/backend/pkg/metrics"
)

// handlerFunc processes one inbound event for a connection. Handlers
// run on the hub goroutine and never block.
type handlerFunc func(c *Client, data json.RawMessage)

// Hub owns all mutable session state: the connection registry and the
// room store. A single Run goroutine processes every register,
// unregister, and inbound event, so no operation ever observes a
// partially-updated room.
type Hub struct {
	log   *slog.Logger
	store *room.Store

	// registry maps connection id to its live client. The client's
	// identity field carries the peer identity once it has joined.
	registry map[string]*Client

	// Register is the channel for newly upgraded connections.
	Register chan *Client

	// Unregister is the channel for transport-detected disconnects.
	Unregister chan *Client

	// Inbound is the channel of decoded envelopes from all read pumps.
	Inbound chan *Envelope

	// handlers is the dispatch table, one entry per inbound event type.
	handlers map[string]handlerFunc
}

// NewHub wires the hub to its store and logger and fills the dispatch
// table.
func NewHub(logger *slog.Logger, store *room.Store) *Hub {
	h := &Hub{
		log:        logger,
		store:      store,
		registry:   make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Envelope),
	}
	h.handlers = map[string]handlerFunc{
		EventJoinRoom:     h.handleJoin,
		EventSignal:       h.handleSignal,
		EventICECandidate: h.handleICECandidate,
		EventSendMessage:  h.handleSendMessage,
		EventGetHistory:   h.handleGetHistory,
	}
	return h
}

// Run is the hub's event loop. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.Register:
			h.registry[c.ID] = c
			metrics.ConnectionsActive.Inc()
			h.log.Debug("client registered", "conn", c.ID)

		case c := <-h.Unregister:
			h.disconnect(c)

		case env := <-h.Inbound:
			h.dispatch(env)

		case <-ctx.Done():
			return
		}
	}
}

// dispatch routes one inbound envelope through the handler table.
// Unknown event types are dropped without state change.
func (h *Hub) dispatch(env *Envelope) {
	handler, ok := h.handlers[env.Event]
	if !ok {
		h.log.Debug("unknown event", "event", env.Event, "conn", env.client.ID)
		return
	}
	handler(env.client, env.Data)
}

// disconnect tears down a client: participant entry, registry entry,
// peer notifications, and the send channel. Safe to call twice; the
// second call is a no-op.
func (h *Hub) disconnect(c *Client) {
	if c.closed {
		return
	}
	c.closed = true

	if _, ok := h.registry[c.ID]; ok {
		delete(h.registry, c.ID)
		metrics.ConnectionsActive.Dec()
	}

	h.leave(c)
	close(c.Send)
	h.log.Debug("client unregistered", "conn", c.ID)
}

// deliver enqueues an envelope for one client. A peer whose buffer is
// full cannot keep up and is treated exactly like a disconnect.
func (h *Hub) deliver(c *Client, env *Envelope) {
	if c.closed {
		return
	}
	select {
	case c.Send <- env:
	default:
		h.log.Warn("send buffer full, dropping peer", "conn", c.ID)
		h.disconnect(c)
	}
}

// broadcast delivers env to every participant of roomID, optionally
// skipping one connection id. Pass exclude = "" to reach the whole
// room.
func (h *Hub) broadcast(roomID, exclude string, env *Envelope) {
	for _, p := range h.store.Participants(roomID) {
		if p.ConnID == exclude {
			continue
		}
		if c, ok := h.registry[p.ConnID]; ok {
			h.deliver(c, env)
		}
	}
}
