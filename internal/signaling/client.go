package signaling

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meetrelay/backend/internal/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB fits any SDP blob.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. A peer that cannot drain this many
	// envelopes is treated as gone.
	sendBufferSize = 256
)

// Client wraps a single websocket connection (one peer).
//
// The hub run loop is the only goroutine that touches identity and
// closed; the pumps only use conn and Send.
type Client struct {
	// ID is the transport-assigned connection identifier. It is not
	// persisted across reconnects.
	ID string

	hub  *Hub
	conn *websocket.Conn

	// Send is the buffered channel of outbound envelopes. WritePump
	// drains it onto the socket.
	Send chan *Envelope

	// identity is set on join-room and cleared when the participant
	// entry is evicted by a reconnect. Nil means connected but not in
	// any room.
	identity *room.Participant

	// closed marks that the hub already tore this client down, so a
	// late unregister does not double-close Send.
	closed bool
}

// NewClient builds a client for an upgraded connection and assigns its
// connection id.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		Send: make(chan *Envelope, sendBufferSize),
	}
}

// ReadPump pumps envelopes from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine and makes
// it the sole reader of the connection. Its exit, whatever the cause,
// is the disconnect signal that triggers the peer's leave.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("read error", "conn", c.ID, "err", err)
			}
			break
		}
		env.client = c
		c.hub.Inbound <- &env
	}
}

// WritePump pumps envelopes from the hub to the websocket connection
// and keeps the connection alive with periodic pings. It is the sole
// writer of the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				slog.Debug("write error", "conn", c.ID, "err", err)
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
