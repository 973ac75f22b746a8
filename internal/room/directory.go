package room

import "time"

// RoomStats is the per-room slice of the aggregate Stats report.
type RoomStats struct {
	RoomID           string    `json:"roomId"`
	ParticipantCount int       `json:"participantCount"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Stats is a point-in-time view of every active room. Pure read, no
// side effects.
type Stats struct {
	ActiveRoomCount   int         `json:"activeRoomCount"`
	TotalParticipants int         `json:"totalParticipants"`
	PerRoom           []RoomStats `json:"perRoom"`
}

// Stats reports the current in-memory state of the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{PerRoom: make([]RoomStats, 0, len(s.rooms))}
	for id, rm := range s.rooms {
		st.ActiveRoomCount++
		st.TotalParticipants += len(rm.Participants)
		st.PerRoom = append(st.PerRoom, RoomStats{
			RoomID:           id,
			ParticipantCount: len(rm.Participants),
			CreatedAt:        rm.CreatedAt,
		})
	}
	return st
}
