package signaling

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetrelay/backend/internal/room"
)

func newTestHub() *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(logger, room.NewStore(0))
}

// connect registers a socketless client so handlers can be exercised
// directly, without running the hub loop or a live transport.
func connect(h *Hub, id string) *Client {
	c := &Client{ID: id, hub: h, Send: make(chan *Envelope, 64)}
	h.registry[c.ID] = c
	return c
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func join(t *testing.T, h *Hub, c *Client, roomID, userID, username string) {
	t.Helper()
	h.handleJoin(c, mustJSON(t, joinRoomData{RoomID: roomID, UserID: userID, Username: username}))
}

// recv pops the next queued envelope, failing the test if there is none.
func recv(t *testing.T, c *Client) *Envelope {
	t.Helper()
	select {
	case env := <-c.Send:
		return env
	default:
		t.Fatalf("no envelope queued for %s", c.ID)
		return nil
	}
}

// drain empties a client's outbound queue, grouped by event name.
func drain(c *Client) map[string][]*Envelope {
	out := map[string][]*Envelope{}
	for {
		select {
		case env := <-c.Send:
			out[env.Event] = append(out[env.Event], env)
		default:
			return out
		}
	}
}

func decode(t *testing.T, env *Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestJoinRepliesWithSnapshotAndHistory(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")

	join(t, h, a, "r1", "u1", "alice")

	env := recv(t, a)
	assert.Equal(t, EventParticipants, env.Event)
	var infos []participantInfo
	decode(t, env, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, "u1", infos[0].UserID)
	assert.Equal(t, "alice", infos[0].Username)
	assert.False(t, infos[0].JoinedAt.IsZero())

	env = recv(t, a)
	assert.Equal(t, EventHistory, env.Event)
	var hist historyData
	decode(t, env, &hist)
	assert.Empty(t, hist.Messages)
}

func TestJoinNotifiesExistingMembers(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")

	join(t, h, a, "r1", "u1", "alice")
	drain(a)

	join(t, h, b, "r1", "u2", "bob")

	// A hears about B, nothing else.
	got := drain(a)
	require.Len(t, got[EventUserConnected], 1)
	var evt userEventData
	decode(t, got[EventUserConnected][0], &evt)
	assert.Equal(t, userEventData{UserID: "u2", Username: "bob"}, evt)

	// B's snapshot lists A first (join order), then B.
	bGot := drain(b)
	require.Len(t, bGot[EventParticipants], 1)
	var infos []participantInfo
	decode(t, bGot[EventParticipants][0], &infos)
	require.Len(t, infos, 2)
	assert.Equal(t, "u1", infos[0].UserID)
	assert.Equal(t, "u2", infos[1].UserID)
	assert.Empty(t, bGot[EventUserConnected], "joiner must not hear its own arrival")
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	drain(a)
	drain(b)

	h.handleSendMessage(a, mustJSON(t, sendMessageData{
		RoomID: "r1", Message: "hi", Sender: "alice", MessageID: "m1",
	}))

	for _, c := range []*Client{a, b} {
		got := drain(c)
		require.Len(t, got[EventNewMessage], 1, "conn %s", c.ID)
		var msg newMessageData
		decode(t, got[EventNewMessage][0], &msg)
		assert.Equal(t, "hi", msg.Message)
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "m1", msg.MessageID, "message id must be forwarded verbatim")
		assert.False(t, msg.Timestamp.IsZero())
	}

	// And the message landed in the bounded history.
	hist := h.store.History("r1")
	require.Len(t, hist, 1)
	assert.Equal(t, "m1", hist[0].MessageID)
}

func TestGetHistoryIsUnicast(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	h.handleSendMessage(a, mustJSON(t, sendMessageData{RoomID: "r1", Message: "hi", Sender: "alice", MessageID: "m1"}))
	drain(a)
	drain(b)

	h.handleGetHistory(b, mustJSON(t, historyRequestData{RoomID: "r1"}))

	bGot := drain(b)
	require.Len(t, bGot[EventHistory], 1)
	var hist historyData
	decode(t, bGot[EventHistory][0], &hist)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, "m1", hist.Messages[0].MessageID)

	assert.Empty(t, drain(a), "history reply must not reach other members")
}

func TestRelayDirectByConnID(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	c := connect(h, "conn-c")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	join(t, h, c, "r1", "u3", "carol")
	drain(a)
	drain(b)
	drain(c)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	h.handleSignal(a, mustJSON(t, signalData{RoomID: "r1", To: "conn-b", From: "u1", Signal: payload}))

	// B gets both the direct copy and the fallback.
	bGot := drain(b)
	require.Len(t, bGot[EventSignal], 1)
	require.Len(t, bGot[EventSignalBroadcast], 1)
	var out signalOutData
	decode(t, bGot[EventSignal][0], &out)
	assert.Equal(t, "u1", out.From)
	assert.JSONEq(t, string(payload), string(out.Signal))

	// C only gets the fallback; the sender gets nothing.
	cGot := drain(c)
	assert.Empty(t, cGot[EventSignal])
	require.Len(t, cGot[EventSignalBroadcast], 1)
	assert.Empty(t, drain(a))
}

func TestRelayResolvesLogicalUserID(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	drain(a)
	drain(b)

	h.handleSignal(a, mustJSON(t, signalData{RoomID: "r1", To: "u2", From: "u1", Signal: json.RawMessage(`"blob"`)}))

	bGot := drain(b)
	require.Len(t, bGot[EventSignal], 1, "userId address must resolve to the current connection")
	require.Len(t, bGot[EventSignalBroadcast], 1)
}

func TestRelayUnresolvedStillBroadcasts(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	drain(a)
	drain(b)

	h.handleSignal(a, mustJSON(t, signalData{RoomID: "r1", To: "nobody", From: "u1", Signal: json.RawMessage(`"blob"`)}))

	bGot := drain(b)
	assert.Empty(t, bGot[EventSignal], "unresolved address yields zero direct recipients")
	require.Len(t, bGot[EventSignalBroadcast], 1, "fallback still reaches the room")
	assert.Empty(t, drain(a), "sender is excluded from the fallback")
}

func TestICECandidateVariant(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	drain(a)
	drain(b)

	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 192.0.2.7 54321 typ host"}`)
	h.handleICECandidate(a, mustJSON(t, candidateData{RoomID: "r1", To: "u2", Candidate: cand}))

	bGot := drain(b)
	require.Len(t, bGot[EventICECandidate], 1)
	var out candidateOutData
	decode(t, bGot[EventICECandidate][0], &out)
	assert.Equal(t, "conn-a", out.From, "candidate carries the sender's connection id")
	assert.JSONEq(t, string(cand), string(out.Candidate))
	require.Len(t, bGot[EventICEBroadcast], 1)
}

func TestDisconnectNotifiesAndTearsDownRoom(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	b := connect(h, "conn-b")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, b, "r1", "u2", "bob")
	drain(a)
	drain(b)

	h.disconnect(b)

	got := drain(a)
	require.Len(t, got[EventUserDisconnected], 1)
	var evt userEventData
	decode(t, got[EventUserDisconnected][0], &evt)
	assert.Equal(t, userEventData{UserID: "u2", Username: "bob"}, evt)

	require.True(t, h.store.Exists("r1"))
	assert.Len(t, h.store.Participants("r1"), 1)

	h.disconnect(a)
	assert.False(t, h.store.Exists("r1"), "last leave must delete the room")
	assert.Empty(t, h.registry)

	// A second unregister for the same client is a no-op.
	h.disconnect(a)
}

func TestDisconnectBeforeJoinIsNoop(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	h.disconnect(a)
	assert.Empty(t, h.registry)
}

func TestReconnectEvictsStaleIdentity(t *testing.T) {
	h := newTestHub()
	old := connect(h, "conn-old")
	join(t, h, old, "r1", "u1", "alice")
	drain(old)

	// Same user id arrives on a fresh connection.
	fresh := connect(h, "conn-new")
	join(t, h, fresh, "r1", "u1", "alice")

	got := h.store.Participants("r1")
	require.Len(t, got, 1)
	assert.Equal(t, "conn-new", got[0].ConnID)

	// The stale connection's eventual disconnect must not disturb the
	// new entry.
	h.disconnect(old)
	assert.Len(t, h.store.Participants("r1"), 1)
	assert.True(t, h.store.Exists("r1"))

	// Signaling addressed to the user id reaches the new connection.
	drain(fresh)
	probe := connect(h, "conn-probe")
	join(t, h, probe, "r1", "u2", "bob")
	h.handleSignal(probe, mustJSON(t, signalData{RoomID: "r1", To: "u1", From: "u2", Signal: json.RawMessage(`"blob"`)}))
	freshGot := drain(fresh)
	require.Len(t, freshGot[EventSignal], 1)
}

func TestJoinMovesConnectionBetweenRooms(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	join(t, h, a, "r1", "u1", "alice")
	join(t, h, a, "r2", "u1", "alice")

	assert.False(t, h.store.Exists("r1"), "old membership must not leak")
	require.Len(t, h.store.Participants("r2"), 1)
}

func TestMalformedEnvelopesAreDropped(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	join(t, h, a, "r1", "u1", "alice")
	drain(a)

	h.dispatch(&Envelope{Event: EventJoinRoom, Data: json.RawMessage(`{"not json`), client: a})
	h.dispatch(&Envelope{Event: EventSignal, Data: json.RawMessage(`{}`), client: a})
	h.dispatch(&Envelope{Event: EventSendMessage, Data: json.RawMessage(`{"message":"no room"}`), client: a})
	h.dispatch(&Envelope{Event: "no-such-event", Data: nil, client: a})

	assert.Empty(t, drain(a))
	assert.Len(t, h.store.Participants("r1"), 1)
	assert.Empty(t, h.store.History("r1"))
}

func TestSlowPeerIsDroppedLikeADisconnect(t *testing.T) {
	h := newTestHub()
	a := connect(h, "conn-a")
	join(t, h, a, "r1", "u1", "alice")

	// Room for the two join replies and nothing more, so the chat
	// broadcast is the write that overflows.
	slow := &Client{ID: "conn-slow", hub: h, Send: make(chan *Envelope, 2)}
	h.registry[slow.ID] = slow
	join(t, h, slow, "r1", "u2", "bob")

	drain(a)
	h.handleSendMessage(a, mustJSON(t, sendMessageData{RoomID: "r1", Message: "hi", Sender: "alice", MessageID: "m1"}))

	assert.True(t, slow.closed)
	assert.NotContains(t, h.registry, "conn-slow")
	assert.Len(t, h.store.Participants("r1"), 1)

	// The survivors heard both the message and the departure.
	got := drain(a)
	assert.Len(t, got[EventNewMessage], 1)
	assert.Len(t, got[EventUserDisconnected], 1)
}
