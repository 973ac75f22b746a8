package signaling

import (
	"encoding/json"

	"github.com/meetrelay/backend/pkg/metrics"
)

// handleSignal relays an opaque negotiation envelope toward one peer.
func (h *Hub) handleSignal(c *Client, data json.RawMessage) {
	var req signalData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		h.log.Debug("malformed signal", "conn", c.ID)
		return
	}

	out := signalOutData{From: req.From, Signal: req.Signal}
	h.relay(c, req.RoomID, req.To, newEnvelope(EventSignal, out), newEnvelope(EventSignalBroadcast, out))
}

// handleICECandidate is the candidate variant of handleSignal. The
// outbound from field is the sender's connection id, matching what the
// target will use to address replies.
func (h *Hub) handleICECandidate(c *Client, data json.RawMessage) {
	var req candidateData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" {
		h.log.Debug("malformed ice-candidate", "conn", c.ID)
		return
	}

	out := candidateOutData{From: c.ID, Candidate: req.Candidate}
	h.relay(c, req.RoomID, req.To, newEnvelope(EventICECandidate, out), newEnvelope(EventICEBroadcast, out))
}

// relay implements the two delivery paths of the signal router.
//
// The direct path resolves to: an exact connection-id match first, then
// a user-id lookup among the room's participants. The broadcast path
// always fires, sender excluded, because addressing information is
// unreliable: user ids are unauthenticated and connection ids rot on
// every reconnect. Receivers ignore payloads that do not match a
// negotiation they are tracking, so duplicates and misdirections are
// harmless. A resolution miss is not an error; it just means only the
// broadcast path reaches anyone.
func (h *Hub) relay(sender *Client, roomID, to string, direct, fallback *Envelope) {
	if target := h.resolve(roomID, to); target != nil && target != sender {
		h.deliver(target, direct)
	}

	h.broadcast(roomID, sender.ID, fallback)
	metrics.SignalsRelayed.Inc()
}

// resolve maps a to-address onto a live client, or nil when the address
// matches nothing.
func (h *Hub) resolve(roomID, to string) *Client {
	if to == "" {
		return nil
	}
	if c, ok := h.registry[to]; ok {
		return c
	}
	if connID, ok := h.store.ResolveUser(roomID, to); ok {
		if c, found := h.registry[connID]; found {
			return c
		}
	}
	return nil
}
