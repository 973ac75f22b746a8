package signaling

import (
	"encoding/json"
	"time"

	"github.com/meetrelay/backend/internal/room"
	"github.com/meetrelay/backend/pkg/metrics"
)

// handleJoin processes a join-room request: create the room if needed,
// evict any stale entry for the same user id, notify the existing
// members, and reply to the joiner with an atomic snapshot of the
// participant list and the chat history.
func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var req joinRoomData
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" || req.UserID == "" {
		h.log.Debug("malformed join-room", "conn", c.ID)
		return
	}

	// A second join on the same connection moves the peer: leave the
	// old room first so its entry does not leak.
	if c.identity != nil {
		h.leave(c)
	}

	p := &room.Participant{
		RoomID:   req.RoomID,
		UserID:   req.UserID,
		Username: req.Username,
		ConnID:   c.ID,
		JoinedAt: time.Now(),
	}

	evicted := h.store.Join(p)
	c.identity = p

	// The evicted entry belongs to a prior connection of the same user
	// id. Detach it so its eventual disconnect does not touch the new
	// entry. Best-effort only; user ids are unauthenticated.
	if evicted != nil && evicted.ConnID != c.ID {
		if stale, ok := h.registry[evicted.ConnID]; ok {
			stale.identity = nil
		}
		h.log.Debug("evicted stale participant",
			"room", req.RoomID, "user", req.UserID, "conn", evicted.ConnID)
	}

	h.broadcast(req.RoomID, c.ID, newEnvelope(EventUserConnected, userEventData{
		UserID:   p.UserID,
		Username: p.Username,
	}))

	// Snapshot taken here, after the insert, so the reply and the
	// user-connected fanout describe the same membership state.
	participants := h.store.Participants(req.RoomID)
	infos := make([]participantInfo, len(participants))
	for i, mp := range participants {
		infos[i] = participantInfo{
			UserID:   mp.UserID,
			Username: mp.Username,
			JoinedAt: mp.JoinedAt,
		}
	}
	h.deliver(c, newEnvelope(EventParticipants, infos))
	h.deliver(c, historyEnvelope(h.store.History(req.RoomID)))

	rooms, participantsTotal := h.store.Counts()
	metrics.RoomsActive.Set(float64(rooms))
	metrics.ParticipantsActive.Set(float64(participantsTotal))

	h.log.Info("peer joined", "room", req.RoomID, "user", req.UserID, "conn", c.ID)
}

// leave removes c's participant entry, notifies the remaining members,
// and lets the store delete the room when it empties. No-op for
// connections that never joined or were evicted by a reconnect.
func (h *Hub) leave(c *Client) {
	p := c.identity
	if p == nil {
		return
	}
	c.identity = nil

	left, remaining, ok := h.store.Leave(p.RoomID, p.ConnID)
	if !ok {
		return
	}

	notice := newEnvelope(EventUserDisconnected, userEventData{
		UserID:   left.UserID,
		Username: left.Username,
	})
	for _, rp := range remaining {
		if peer, found := h.registry[rp.ConnID]; found {
			h.deliver(peer, notice)
		}
	}

	rooms, participantsTotal := h.store.Counts()
	metrics.RoomsActive.Set(float64(rooms))
	metrics.ParticipantsActive.Set(float64(participantsTotal))

	h.log.Info("peer left", "room", p.RoomID, "user", p.UserID, "conn", p.ConnID)
}
