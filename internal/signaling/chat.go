package signaling

import (
	"encoding/json"
	"time"

	"github.com/meetrelay/backend/internal/room"
	"github.com/meetrelay/backend/pkg/metrics"
)

// handleSendMessage stamps, broadcasts, and records one chat message.
//
// The broadcast includes the sender: every client derives "is this
// mine" from the same event stream, so local and remote ordering never
// diverge. The message id is echoed verbatim; de-duplication is the
// receivers' job, the relay forwards every send exactly once.
func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	var req sendMessageData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		h.log.Debug("malformed send-message", "conn", c.ID)
		return
	}

	msg := room.ChatMessage{
		Text:      req.Message,
		Sender:    req.Sender,
		Timestamp: time.Now(),
		MessageID: req.MessageID,
	}
	if !h.store.AppendMessage(req.RoomID, msg) {
		h.log.Debug("message for unknown room dropped", "room", req.RoomID, "conn", c.ID)
		return
	}

	h.broadcast(req.RoomID, "", newEnvelope(EventNewMessage, newMessageData{
		Message:   msg.Text,
		Sender:    msg.Sender,
		Timestamp: msg.Timestamp,
		MessageID: msg.MessageID,
	}))
	metrics.ChatMessages.Inc()
}

// handleGetHistory replies to the requesting connection only with the
// room's current chat log. Unknown rooms yield an empty list.
func (h *Hub) handleGetHistory(c *Client, data json.RawMessage) {
	var req historyRequestData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		h.log.Debug("malformed get-message-history", "conn", c.ID)
		return
	}
	h.deliver(c, historyEnvelope(h.store.History(req.RoomID)))
}

// historyEnvelope converts a history snapshot into its wire form.
func historyEnvelope(msgs []room.ChatMessage) *Envelope {
	out := historyData{Messages: make([]newMessageData, len(msgs))}
	for i, m := range msgs {
		out.Messages[i] = newMessageData{
			Message:   m.Text,
			Sender:    m.Sender,
			Timestamp: m.Timestamp,
			MessageID: m.MessageID,
		}
	}
	return newEnvelope(EventHistory, out)
}
