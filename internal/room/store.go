package room

import (
	"sync"
	"time"
)

// Store is the process-wide map of active rooms.
//
// All mutation goes through the signaling hub's run loop, so writes are
// already serialized; the RWMutex exists so the read-only directory
// queries (Exists, Stats, History) can be served from HTTP handlers
// without observing a partially-updated room.
type Store struct {
	mu           sync.RWMutex
	rooms        map[string]*Room
	historyLimit int
}

// NewStore creates an empty store. A historyLimit <= 0 falls back to
// DefaultHistoryLimit.
func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		rooms:        make(map[string]*Room),
		historyLimit: historyLimit,
	}
}

// Join adds p to its room, creating the room if it does not exist yet.
// If the room already holds a participant with the same UserID (a stale
// entry from a prior connection), that entry is removed first and
// returned so the caller can detach it.
func (s *Store) Join(p *Participant) (evicted *Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[p.RoomID]
	if rm == nil {
		rm = &Room{ID: p.RoomID, CreatedAt: time.Now()}
		s.rooms[p.RoomID] = rm
	}

	for i, existing := range rm.Participants {
		if existing.UserID == p.UserID {
			evicted = existing
			rm.Participants = append(rm.Participants[:i], rm.Participants[i+1:]...)
			break
		}
	}

	rm.Participants = append(rm.Participants, p)
	return evicted
}

// Leave removes the participant with connID from roomID. It returns the
// removed participant and a snapshot of who remains. When the last
// participant leaves, the room is deleted along with its chat log.
// Removal is keyed on ConnID only; UserID may collide across reconnects.
func (s *Store) Leave(roomID, connID string) (left *Participant, remaining []Participant, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[roomID]
	if rm == nil {
		return nil, nil, false
	}

	for i, p := range rm.Participants {
		if p.ConnID == connID {
			left = p
			rm.Participants = append(rm.Participants[:i], rm.Participants[i+1:]...)
			break
		}
	}
	if left == nil {
		return nil, nil, false
	}

	if len(rm.Participants) == 0 {
		delete(s.rooms, roomID)
		return left, nil, true
	}

	remaining = make([]Participant, len(rm.Participants))
	for i, p := range rm.Participants {
		remaining[i] = *p
	}
	return left, remaining, true
}

// Participants returns a snapshot of the room's member list in join
// order, or nil if the room does not exist.
func (s *Store) Participants(roomID string) []Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm := s.rooms[roomID]
	if rm == nil {
		return nil
	}
	out := make([]Participant, len(rm.Participants))
	for i, p := range rm.Participants {
		out[i] = *p
	}
	return out
}

// ResolveUser finds the current connection id for a logical user id
// within a room. Peers often address each other by user id because the
// connection id changes on every reconnect.
func (s *Store) ResolveUser(roomID, userID string) (connID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm := s.rooms[roomID]
	if rm == nil {
		return "", false
	}
	for _, p := range rm.Participants {
		if p.UserID == userID {
			return p.ConnID, true
		}
	}
	return "", false
}

// AppendMessage appends m to the room's history, evicting the single
// oldest entry if the log is at capacity. Returns false if the room is
// unknown, in which case the message is dropped.
func (s *Store) AppendMessage(roomID string, m ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm := s.rooms[roomID]
	if rm == nil {
		return false
	}
	rm.Messages = append(rm.Messages, m)
	if len(rm.Messages) > s.historyLimit {
		rm.Messages = rm.Messages[1:]
	}
	return true
}

// History returns a copy of the room's chat log in send order. Unknown
// rooms yield an empty slice, not an error.
func (s *Store) History(roomID string) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm := s.rooms[roomID]
	if rm == nil {
		return []ChatMessage{}
	}
	out := make([]ChatMessage, len(rm.Messages))
	copy(out, rm.Messages)
	return out
}

// Exists reports whether roomID has at least one participant.
func (s *Store) Exists(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Counts returns the number of active rooms and the total participant
// count across all of them.
func (s *Store) Counts() (rooms, participants int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rm := range s.rooms {
		participants += len(rm.Participants)
	}
	return len(s.rooms), participants
}
