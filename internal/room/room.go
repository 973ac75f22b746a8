package room

import "time"

// DefaultHistoryLimit is the per-room chat log capacity. When the log is
// full, the oldest message is evicted one at a time.
const DefaultHistoryLimit = 100

// Participant identifies one live connection inside a room.
//
// UserID is client-supplied and unauthenticated; it is only expected to be
// unique within a room session. ConnID is assigned by the server at upgrade
// time and is the sole key used for removal.
type Participant struct {
	RoomID   string
	UserID   string
	Username string
	ConnID   string
	JoinedAt time.Time
}

// ChatMessage is one entry in a room's bounded history. MessageID is the
// opaque id the sending client attached; it is forwarded verbatim so
// receivers can suppress duplicates.
type ChatMessage struct {
	Text      string
	Sender    string
	Timestamp time.Time
	MessageID string
}

// Room groups the connections sharing one conferencing session.
// Participants are kept in join order. A room is created lazily on the
// first join and deleted the moment it becomes empty.
type Room struct {
	ID           string
	Participants []*Participant
	Messages     []ChatMessage
	CreatedAt    time.Time
}
