package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub() *Hub {
	return NewHub(zap.NewNop(), nil, nil)
}

// newTestClient builds a client with no underlying websocket; delivered
// messages pile up in the send channel for assertions.
func newTestClient(h *Hub, name, role string) *Client {
	c := &Client{
		ID:     uuid.New().String(),
		UserID: uuid.New(),
		Name:   name,
		Role:   role,
		hub:    h,
		send:   make(chan WSMessage, 64),
		logger: zap.NewNop(),
	}
	h.addClient(c)
	return c
}

func joinRoom(h *Hub, c *Client, roomID, participantID string) *Room {
	r := h.GetOrCreateRoom(roomID)
	c.room = r
	c.participantID = participantID
	r.Join(c, participantID)
	return r
}

// settle blocks until the room's dispatch goroutine has drained every
// previously enqueued task. Elapsed is itself dispatched, so its return
// doubles as a barrier.
func settle(t *testing.T, r *Room) {
	t.Helper()
	_, ok := r.Elapsed()
	require.True(t, ok)
}

func recvEvent(t *testing.T, c *Client, event string) WSMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

func drainClient(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestRoomTimerResumesOnSecondJoin(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	settle(t, r)

	var snap TimerSnapshot
	msg := recvEvent(t, instructor, EventTimerSync)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 1, snap.ParticipantCount)
	assert.Nil(t, snap.LastResumeTimestamp, "timer stays paused with one participant")

	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)

	msg = recvEvent(t, student, EventTimerSync)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 2, snap.ParticipantCount)
	require.NotNil(t, snap.LastResumeTimestamp, "timer runs once both peers are present")
	assert.Equal(t, int64(0), snap.AccumulatedMillis)
}

func TestRoomObserverJoinDoesNotResumeTimer(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	observer := newTestClient(h, "Dash", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, observer, "room-1", ObserverPrefix+"dash")
	settle(t, r)

	var snap TimerSnapshot
	msg := recvEvent(t, observer, EventTimerSync)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 1, snap.ParticipantCount)
	assert.Nil(t, snap.LastResumeTimestamp)
}

func TestRoomPresenceGoesToOthersOnly(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	settle(t, r)
	drainClient(instructor)

	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)

	var presence PresencePayload
	msg := recvEvent(t, instructor, EventUserConnected)
	require.NoError(t, json.Unmarshal(msg.Data, &presence))
	assert.Equal(t, "student-1", presence.ParticipantID)

	// The joiner sees its own timer-sync but never its own presence.
	msg = recvEvent(t, student, EventTimerSync)
	assert.Equal(t, EventTimerSync, msg.Event)
	assert.Empty(t, student.send)
}

func TestChatEchoesToSender(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(instructor)
	drainClient(student)

	r.Dispatch(student, WSMessage{
		Event: EventSendMessage,
		Data:  mustMarshal(ChatPayload{Text: "can you repeat that?"}),
	})
	settle(t, r)

	for _, c := range []*Client{student, instructor} {
		var chat ChatPayload
		msg := recvEvent(t, c, EventReceiveMessage)
		require.NoError(t, json.Unmarshal(msg.Data, &chat))
		assert.Equal(t, "room-1", chat.RoomID)
		assert.Equal(t, "can you repeat that?", chat.Text)
		assert.Equal(t, "Marco", chat.SenderLabel)
		assert.NotZero(t, chat.Timestamp)
	}
}

func TestWhiteboardGoesToOthersOnly(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(instructor)
	drainClient(student)

	r.Dispatch(instructor, WSMessage{
		Event: EventDrawLine,
		Data: mustMarshal(DrawLinePayload{
			Start: Point{X: 0.1, Y: 0.1},
			End:   Point{X: 0.5, Y: 0.5},
			Color: "#ff0000",
			Width: 2,
		}),
	})
	settle(t, r)

	var stroke DrawLinePayload
	msg := recvEvent(t, student, EventDrawLine)
	require.NoError(t, json.Unmarshal(msg.Data, &stroke))
	assert.Equal(t, "room-1", stroke.RoomID)
	assert.Equal(t, 0.5, stroke.End.X)

	assert.Empty(t, instructor.send, "drawer already rendered locally")
}

func TestSignalingDroppedWithoutPeers(t *testing.T) {
	h := newTestHub()
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(student)

	r.Dispatch(student, WSMessage{
		Event: EventRequestOffer,
		Data:  mustMarshal(RequestOfferPayload{}),
	})
	settle(t, r)

	assert.Empty(t, student.send, "signaling with no peers is a silent drop")
}

func TestOfferStampedWithTimerSnapshot(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(instructor)
	drainClient(student)

	r.Dispatch(instructor, WSMessage{
		Event: EventOffer,
		Data: mustMarshal(OfferPayload{
			SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"},
		}),
	})
	settle(t, r)

	var offer OfferPayload
	msg := recvEvent(t, student, EventOffer)
	require.NoError(t, json.Unmarshal(msg.Data, &offer))
	assert.Equal(t, "room-1", offer.RoomID)
	assert.Equal(t, "instructor-1", offer.SenderID)
	assert.Equal(t, "Priya", offer.DisplayName)
	require.NotNil(t, offer.TimerSnapshot)
	assert.Equal(t, 2, offer.TimerSnapshot.ParticipantCount)
	require.NotNil(t, offer.TimerSnapshot.LastResumeTimestamp)

	assert.Empty(t, instructor.send, "offerer does not receive its own offer")
}

func TestAnswerSettlesPendingCandidates(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)

	r.Dispatch(instructor, WSMessage{
		Event: EventOffer,
		Data:  mustMarshal(OfferPayload{SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}}),
	})
	r.Dispatch(instructor, WSMessage{
		Event: EventICECandidate,
		Data:  mustMarshal(ICECandidatePayload{Candidate: webrtc.ICECandidateInit{Candidate: "candidate:1"}}),
	})
	settle(t, r)
	assert.Equal(t, 1, r.pending.Len())

	r.Dispatch(student, WSMessage{
		Event: EventAnswer,
		Data:  mustMarshal(AnswerPayload{SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}}),
	})
	settle(t, r)

	assert.Equal(t, 0, r.pending.Len(), "answer settles the queue for this epoch")

	var answer AnswerPayload
	msg := recvEvent(t, instructor, EventAnswer)
	require.NoError(t, json.Unmarshal(msg.Data, &answer))
	assert.Equal(t, "student-1", answer.SenderID)
}

func TestRequestOfferSupersedesNegotiation(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)

	r.Dispatch(instructor, WSMessage{
		Event: EventICECandidate,
		Data:  mustMarshal(ICECandidatePayload{Candidate: webrtc.ICECandidateInit{Candidate: "candidate:1"}}),
	})
	settle(t, r)
	require.Equal(t, 1, r.pending.Len())

	r.Dispatch(student, WSMessage{
		Event: EventRequestOffer,
		Data:  mustMarshal(RequestOfferPayload{}),
	})
	settle(t, r)

	assert.Equal(t, 0, r.pending.Len(), "request-offer starts a fresh epoch, discarding stale candidates")

	var req RequestOfferPayload
	msg := recvEvent(t, instructor, EventRequestOffer)
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	assert.Equal(t, "student-1", req.ParticipantID)
	assert.Equal(t, "Marco", req.DisplayName)
}

func TestLeavePausesTimer(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(instructor)
	drainClient(student)

	r.Leave(student)
	settle(t, r)

	// The timer-sync lands first, then the presence announcement.
	var snap TimerSnapshot
	msg := recvEvent(t, instructor, EventTimerSync)
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	assert.Equal(t, 1, snap.ParticipantCount)
	assert.Nil(t, snap.LastResumeTimestamp, "timer pauses when a peer drops")

	var presence PresencePayload
	msg = recvEvent(t, instructor, EventUserDisconnected)
	require.NoError(t, json.Unmarshal(msg.Data, &presence))
	assert.Equal(t, "student-1", presence.ParticipantID)
}

func TestEndSessionClearsLiveFlagWithoutPeers(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	settle(t, r)

	h.setLive("room-1", true)
	r.Dispatch(instructor, WSMessage{Event: EventEndSession, Data: mustMarshal(RoomPayload{})})
	settle(t, r)

	assert.False(t, h.isLive("room-1"), "a lone participant ending the session still clears the live flag")
}

func TestRoomSwitchKeepsRegistryConsistent(t *testing.T) {
	h := newTestHub()
	peer := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	oldRoom := joinRoom(h, peer, "room-a", "instructor-1")
	joinRoom(h, student, "room-a", "student-1")
	settle(t, oldRoom)

	// Stall the old room's dispatcher so its leave bookkeeping cannot
	// run before the new room's join.
	block := make(chan struct{})
	oldRoom.enqueue(func() { <-block })

	student.handleJoinRoom(mustMarshal(JoinRoomPayload{RoomID: "room-b", ParticipantID: "student-1"}))
	require.NotNil(t, student.room)
	settle(t, student.room)

	conn := h.Registry().Get(student.ID)
	require.NotNil(t, conn, "the connection must stay registered through a room switch")
	assert.Equal(t, "room-b", conn.RoomID)
	assert.Equal(t, "room-b", student.room.ID)

	close(block)
	settle(t, oldRoom)
	assert.Equal(t, 1, h.Registry().RoomSize("room-a"))
	assert.Equal(t, 1, h.Registry().RoomSize("room-b"))
}

func TestJoinUserRoomFollowsVerifiedIdentity(t *testing.T) {
	h := newTestHub()
	victim := newTestClient(h, "Priya", "instructor")
	imposter := newTestClient(h, "Marco", "student")

	h.JoinUserChannel(victim, victim.UserID.String())
	// The imposter claims the victim's user id; the subscription must
	// follow its own verified identity instead.
	imposter.handleJoinUserRoom(mustMarshal(JoinUserRoomPayload{UserID: victim.UserID}))

	h.SendToUser(victim.UserID.String(), EventNewNotification, map[string]string{"title": "for Priya"})
	recvEvent(t, victim, EventNewNotification)
	assert.Empty(t, imposter.send, "claimed id must not receive another user's notifications")

	h.SendToUser(imposter.UserID.String(), EventNewNotification, map[string]string{"title": "for Marco"})
	recvEvent(t, imposter, EventNewNotification)
}

func TestRoomTearsDownWhenEmpty(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)

	r.Leave(student)
	r.Leave(instructor)

	require.Eventually(t, func() bool {
		return h.Room("room-1") == nil
	}, 2*time.Second, 10*time.Millisecond, "empty room is torn down")

	_, ok := h.RoomElapsed("room-1")
	assert.False(t, ok)

	// A fresh join after teardown gets a brand-new room with a zeroed timer.
	r2 := h.GetOrCreateRoom("room-1")
	assert.NotSame(t, r, r2)
}

func TestSessionStatusReflectsLiveStream(t *testing.T) {
	h := newTestHub()
	instructor := newTestClient(h, "Priya", "instructor")
	student := newTestClient(h, "Marco", "student")

	r := joinRoom(h, instructor, "room-1", "instructor-1")
	joinRoom(h, student, "room-1", "student-1")
	settle(t, r)
	drainClient(student)

	r.Dispatch(student, WSMessage{Event: EventCheckSessionStatus})
	settle(t, r)

	var status SessionStatusPayload
	msg := recvEvent(t, student, EventSessionStatus)
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.False(t, status.IsLive)

	r.Dispatch(instructor, WSMessage{Event: EventInstructorStartedStream})
	settle(t, r)
	drainClient(student)

	r.Dispatch(student, WSMessage{Event: EventCheckSessionStatus})
	settle(t, r)

	msg = recvEvent(t, student, EventSessionStatus)
	require.NoError(t, json.Unmarshal(msg.Data, &status))
	assert.True(t, status.IsLive)

	// end-session flips the room back to not live.
	r.Dispatch(instructor, WSMessage{Event: EventEndSession, Data: mustMarshal(RoomPayload{})})
	settle(t, r)
	assert.False(t, h.isLive("room-1"))
}

func TestSendToUserReachesAllConnections(t *testing.T) {
	h := newTestHub()
	tabOne := newTestClient(h, "Priya", "instructor")
	tabTwo := newTestClient(h, "Priya", "instructor")
	other := newTestClient(h, "Marco", "student")

	userID := tabOne.UserID.String()
	h.JoinUserChannel(tabOne, userID)
	h.JoinUserChannel(tabTwo, userID)
	h.JoinUserChannel(other, other.UserID.String())

	h.SendToUser(userID, EventNewNotification, map[string]string{"title": "New session request"})

	for _, c := range []*Client{tabOne, tabTwo} {
		msg := recvEvent(t, c, EventNewNotification)
		assert.Equal(t, EventNewNotification, msg.Event)
	}
	assert.Empty(t, other.send)
}
