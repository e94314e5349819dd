package realtime

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/metrics"
)

const roomQueueSize = 256

// Room owns all mutable state for one live tutoring session: the
// timer, the negotiation epoch and its pending candidate queue. Every
// inbound event for the room is executed on a single dispatch
// goroutine, so messages within a room are handled in arrival order
// while rooms proceed in parallel. No state is shared across rooms.
type Room struct {
	ID string

	hub     *Hub
	timer   *Timer
	pending *CandidateQueue

	// answered tracks whether the current epoch's answer has passed
	// through, i.e. the receiver side has a remote description.
	answered bool

	tasks  chan func()
	closed atomic.Bool
	logger *zap.Logger
}

func newRoom(id string, hub *Hub, logger *zap.Logger) *Room {
	r := &Room{
		ID:      id,
		hub:     hub,
		timer:   NewTimer(nil),
		pending: NewCandidateQueue(),
		tasks:   make(chan func(), roomQueueSize),
		logger:  logger,
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for fn := range r.tasks {
		fn()
		if r.closed.Load() {
			return
		}
	}
}

// enqueue schedules fn on the room's dispatch goroutine. Events for a
// torn-down room are dropped; a full queue drops the event rather than
// blocking the reader.
func (r *Room) enqueue(fn func()) {
	if r.closed.Load() {
		return
	}
	select {
	case r.tasks <- fn:
	default:
		r.logger.Warn("room queue full, dropping event", zap.String("room_id", r.ID))
	}
}

// Join registers the client's connection in the room, drives the timer
// and announces presence.
func (r *Room) Join(c *Client, participantID string) {
	r.enqueue(func() { r.handleJoin(c, participantID) })
}

// Leave removes the client's connection; tears the room down when the
// last connection is gone.
func (r *Room) Leave(c *Client) {
	r.enqueue(func() { r.settleLeave(r.hub.registry.Leave(c.ID)) })
}

// Release finishes room bookkeeping for a connection the caller has
// already removed from the registry. A client switching rooms
// deregisters synchronously so its join in the new room can never
// collide with the connection id still held here.
func (r *Room) Release(conn *Connection) {
	if conn == nil {
		return
	}
	r.enqueue(func() { r.settleLeave(conn) })
}

// Dispatch routes a room-scoped message from the client through the
// signaling relay or the side-channel broadcaster.
func (r *Room) Dispatch(c *Client, msg WSMessage) {
	r.enqueue(func() { r.handleMessage(c, msg) })
}

// Elapsed reads the authoritative elapsed time from the room's
// dispatch goroutine. Returns false if the room is already gone.
func (r *Room) Elapsed() (time.Duration, bool) {
	if r.closed.Load() {
		return 0, false
	}
	reply := make(chan time.Duration, 1)
	r.enqueue(func() { reply <- r.timer.Elapsed() })
	select {
	case d := <-reply:
		return d, true
	case <-time.After(time.Second):
		return 0, false
	}
}

func (r *Room) handleJoin(c *Client, participantID string) {
	conn, err := r.hub.registry.Join(c.ID, r.ID, participantID, c.Role)
	if err != nil {
		r.logger.Warn("room join rejected", zap.String("room_id", r.ID),
			zap.String("connection_id", c.ID), zap.Error(err))
		return
	}

	count := r.hub.registry.NonObserverCount(r.ID)

	// A non-observer joining a room that already has a signaling peer
	// supersedes any in-flight negotiation: new epoch, queue discarded.
	if !conn.IsObserver && count >= 2 {
		r.resetNegotiation("participant joined")
	}

	if r.timer.Observe(count) {
		r.logger.Info("session timer resumed", zap.String("room_id", r.ID))
		metrics.TimerTransitions.WithLabelValues("resume").Inc()
	}

	r.broadcastTimerSync(count)
	r.hub.relayToOthers(r.ID, c.ID, EventUserConnected, PresencePayload{ParticipantID: participantID})

	r.logger.Debug("participant joined room",
		zap.String("room_id", r.ID),
		zap.String("participant_id", participantID),
		zap.Bool("observer", conn.IsObserver))
}

func (r *Room) settleLeave(conn *Connection) {
	if conn == nil {
		return
	}

	count := r.hub.registry.NonObserverCount(r.ID)
	if r.timer.Observe(count) {
		r.logger.Info("session timer paused", zap.String("room_id", r.ID),
			zap.Duration("accumulated", r.timer.Elapsed()))
		metrics.TimerTransitions.WithLabelValues("pause").Inc()
	}

	if r.hub.registry.RoomSize(r.ID) == 0 {
		r.closed.Store(true)
		r.hub.removeRoom(r)
		r.logger.Info("room torn down", zap.String("room_id", r.ID))
		return
	}

	r.broadcastTimerSync(count)
	r.hub.relayToOthers(r.ID, conn.ID, EventUserDisconnected, PresencePayload{ParticipantID: conn.ParticipantID})
}

func (r *Room) handleMessage(c *Client, msg WSMessage) {
	switch msg.Event {
	case EventRequestOffer, EventOffer, EventAnswer, EventICECandidate, EventEndSession:
		r.relaySignaling(c, msg)
	case EventSendMessage, EventSendReaction, EventDrawLine, EventClearCanvas, EventInstructorStartedStream:
		r.broadcastSideChannel(c, msg)
	case EventCheckSessionStatus:
		c.trySend(WSMessage{Event: EventSessionStatus, Data: mustMarshal(SessionStatusPayload{
			RoomID: r.ID,
			IsLive: r.hub.isLive(r.ID),
		})})
	default:
		r.logger.Debug("unknown room event", zap.String("event", msg.Event), zap.String("room_id", r.ID))
	}
}

func (r *Room) resetNegotiation(reason string) {
	epoch := r.pending.NextEpoch()
	r.answered = false
	metrics.NegotiationResets.Inc()
	r.logger.Debug("negotiation reset",
		zap.String("room_id", r.ID),
		zap.Uint64("epoch", epoch),
		zap.String("reason", reason))
}

func (r *Room) broadcastTimerSync(nonObserverCount int) {
	r.hub.broadcast(r.ID, EventTimerSync, r.timer.Snapshot(nonObserverCount))
}
