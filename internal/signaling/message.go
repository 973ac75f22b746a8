package signaling

import (
	"encoding/json"
	"time"
)

// Inbound event names.
const (
	EventJoinRoom     = "join-room"
	EventSignal       = "signal"
	EventICECandidate = "ice-candidate"
	EventSendMessage  = "send-message"
	EventGetHistory   = "get-message-history"
)

// Outbound event names.
const (
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventParticipants     = "room-participants"
	EventSignalBroadcast  = "signal-broadcast"
	EventICEBroadcast     = "ice-candidate-broadcast"
	EventNewMessage       = "new-message"
	EventHistory          = "message-history"
)

// Envelope is the structure of every C2S and S2C websocket frame:
// an event name plus an event-specific JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`

	// client is the connection that sent the envelope. Internal to the
	// hub, never serialized.
	client *Client
}

// newEnvelope marshals v into an outbound envelope. All payload types
// below marshal without error.
func newEnvelope(event string, v any) *Envelope {
	data, _ := json.Marshal(v)
	return &Envelope{Event: event, Data: data}
}

// joinRoomData carries a join-room request.
type joinRoomData struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// signalData carries a connection-negotiation envelope. Signal is an
// opaque blob; the server routes it without looking inside.
type signalData struct {
	RoomID string          `json:"roomId"`
	To     string          `json:"to"`
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// candidateData is the ice-candidate variant of signalData.
type candidateData struct {
	RoomID    string          `json:"roomId"`
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type sendMessageData struct {
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
	Sender    string `json:"sender"`
	MessageID string `json:"messageId"`
}

type historyRequestData struct {
	RoomID string `json:"roomId"`
}

// userEventData is the payload of user-connected / user-disconnected.
type userEventData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// participantInfo is one entry of a room-participants snapshot.
type participantInfo struct {
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// signalOutData is the payload delivered on signal / signal-broadcast.
type signalOutData struct {
	From   string          `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// candidateOutData is the payload delivered on ice-candidate /
// ice-candidate-broadcast.
type candidateOutData struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// newMessageData is the payload of new-message and each entry of a
// message-history reply.
type newMessageData struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	MessageID string    `json:"messageId"`
}

type historyData struct {
	Messages []newMessageData `json:"messages"`
}
