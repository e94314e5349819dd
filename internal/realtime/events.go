package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event names carried over the WebSocket channel. SDP and ICE payloads
// pass through the relay untouched; the server never inspects them.
const (
	EventJoinRoom     = "join-room"
	EventJoinUserRoom = "join-user-room"

	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"

	EventRequestOffer = "request-offer"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"

	EventTimerSync = "timer-sync"

	EventSendMessage     = "send-message"
	EventReceiveMessage  = "receive-message"
	EventSendReaction    = "send-reaction"
	EventReceiveReaction = "receive-reaction"
	EventDrawLine        = "draw-line"
	EventClearCanvas     = "clear-canvas"

	EventInstructorStartedStream = "instructor-started-stream"
	EventEndSession              = "end-session"
	EventCheckSessionStatus      = "check-session-status"
	EventSessionStatus           = "session-status"

	EventNewNotification = "new-notification"
)

// JoinRoomPayload is sent by a client to enter a session room.
type JoinRoomPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
}

// JoinUserRoomPayload subscribes a client to its personal notification channel.
type JoinUserRoomPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// PresencePayload announces a participant joining or leaving a room.
type PresencePayload struct {
	ParticipantID string `json:"participant_id"`
}

// RequestOfferPayload asks the instructor to start a fresh negotiation.
type RequestOfferPayload struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
}

// OfferPayload carries the instructor's SDP offer. The relay stamps
// TimerSnapshot with the room's authoritative timer state on the way
// through so the receiving peer can self-synchronize.
type OfferPayload struct {
	RoomID        string                    `json:"room_id"`
	SDP           webrtc.SessionDescription `json:"sdp"`
	SenderID      string                    `json:"sender_id,omitempty"`
	DisplayName   string                    `json:"display_name,omitempty"`
	TimerSnapshot *TimerSnapshot            `json:"timer_snapshot,omitempty"`
}

// AnswerPayload carries the answering peer's SDP.
type AnswerPayload struct {
	RoomID   string                    `json:"room_id"`
	SDP      webrtc.SessionDescription `json:"sdp"`
	SenderID string                    `json:"sender_id,omitempty"`
}

// ICECandidatePayload carries one ICE candidate between peers.
type ICECandidatePayload struct {
	RoomID    string                  `json:"room_id"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// ChatPayload is a room chat message, echoed back to the sender's own
// connections so multi-tab senders stay in sync.
type ChatPayload struct {
	RoomID      string `json:"room_id"`
	Text        string `json:"text"`
	SenderLabel string `json:"sender_label"`
	Timestamp   int64  `json:"timestamp"`
}

// ReactionPayload is an ephemeral emoji reaction; clients auto-expire
// the visual, nothing is persisted.
type ReactionPayload struct {
	RoomID string `json:"room_id"`
	Emoji  string `json:"emoji"`
}

// Point is a whiteboard coordinate normalized to [0,1]x[0,1] so drawer
// and viewer canvas resolutions stay decoupled.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawLinePayload is one whiteboard stroke segment.
type DrawLinePayload struct {
	RoomID string  `json:"room_id"`
	Start  Point   `json:"start"`
	End    Point   `json:"end"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

// RoomPayload addresses an event at a room with no extra fields
// (clear-canvas, end-session, instructor-started-stream).
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

// SessionStatusPayload answers a check-session-status query.
type SessionStatusPayload struct {
	RoomID string `json:"room_id"`
	IsLive bool   `json:"is_live"`
}
