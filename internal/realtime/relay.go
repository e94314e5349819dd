package realtime

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/metrics"
)

// relaySignaling forwards WebRTC negotiation traffic to the other
// connections in the room. The relay never interprets SDP or ICE
// payloads; it only stamps identity and the timer snapshot, and tracks
// the negotiation epoch so superseded exchanges leave nothing behind.
//
// Glare avoidance: only the instructor role ever issues an offer. A
// newly joined peer emits request-offer, and every relayed
// request-offer or offer starts a fresh negotiation epoch (hard reset,
// preserved from the reference protocol even for benign duplicates).
func (r *Room) relaySignaling(c *Client, msg WSMessage) {
	// end-session clears the live flag even when nobody is left to tell;
	// a lone participant ending the session must not leave the room
	// reported live until teardown.
	if msg.Event == EventEndSession {
		r.hub.setLive(r.ID, false)
	}

	if r.hub.registry.RoomSize(r.ID) <= 1 {
		// Transient one-sided presence during negotiation races is
		// expected; dropping is the correct no-op, not a failure.
		metrics.SignalingDropped.WithLabelValues(msg.Event).Inc()
		r.logger.Debug("no peers to relay to", zap.String("event", msg.Event), zap.String("room_id", r.ID))
		return
	}

	switch msg.Event {
	case EventRequestOffer:
		r.relayRequestOffer(c, msg.Data)
	case EventOffer:
		r.relayOffer(c, msg.Data)
	case EventAnswer:
		r.relayAnswer(c, msg.Data)
	case EventICECandidate:
		r.relayICECandidate(c, msg.Data)
	case EventEndSession:
		r.hub.relayToOthers(r.ID, c.ID, EventEndSession, json.RawMessage(msg.Data))
		metrics.SignalingRelayed.WithLabelValues(EventEndSession).Inc()
	}
}

func (r *Room) relayRequestOffer(c *Client, data json.RawMessage) {
	var payload RequestOfferPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("malformed request-offer", zap.String("room_id", r.ID), zap.Error(err))
		return
	}
	payload.RoomID = r.ID
	if payload.ParticipantID == "" {
		payload.ParticipantID = c.participantID
	}
	if payload.DisplayName == "" {
		payload.DisplayName = c.Name
	}

	r.resetNegotiation("request-offer")
	r.hub.relayToOthers(r.ID, c.ID, EventRequestOffer, payload)
	metrics.SignalingRelayed.WithLabelValues(EventRequestOffer).Inc()
}

func (r *Room) relayOffer(c *Client, data json.RawMessage) {
	var payload OfferPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("malformed offer", zap.String("room_id", r.ID), zap.Error(err))
		return
	}
	payload.RoomID = r.ID
	if payload.SenderID == "" {
		payload.SenderID = c.participantID
	}
	if payload.DisplayName == "" {
		payload.DisplayName = c.Name
	}

	// Every offer starts a new negotiation epoch; receivers discard any
	// prior context. The offer carries the authoritative timer snapshot
	// so the new peer self-synchronizes without a separate round trip.
	r.resetNegotiation("offer")
	snap := r.timer.Snapshot(r.hub.registry.NonObserverCount(r.ID))
	payload.TimerSnapshot = &snap

	r.hub.relayToOthers(r.ID, c.ID, EventOffer, payload)
	metrics.SignalingRelayed.WithLabelValues(EventOffer).Inc()
}

func (r *Room) relayAnswer(c *Client, data json.RawMessage) {
	var payload AnswerPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("malformed answer", zap.String("room_id", r.ID), zap.Error(err))
		return
	}
	payload.RoomID = r.ID
	if payload.SenderID == "" {
		payload.SenderID = c.participantID
	}

	// The answer means the remote description is set on both sides:
	// candidates buffered for this epoch are now applied receiver-side
	// in arrival order, so the queue's job for this epoch is done.
	r.answered = true
	if flushed := r.pending.Flush(r.pending.Epoch()); len(flushed) > 0 {
		r.logger.Debug("candidate queue settled", zap.String("room_id", r.ID), zap.Int("candidates", len(flushed)))
	}

	r.hub.relayToOthers(r.ID, c.ID, EventAnswer, payload)
	metrics.SignalingRelayed.WithLabelValues(EventAnswer).Inc()
}

func (r *Room) relayICECandidate(c *Client, data json.RawMessage) {
	var payload ICECandidatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		r.logger.Warn("malformed ice-candidate", zap.String("room_id", r.ID), zap.Error(err))
		return
	}
	payload.RoomID = r.ID

	// Candidates relayed before this epoch's answer are tracked in the
	// pending queue; a superseding offer invalidates them wholesale.
	if !r.answered {
		r.pending.Push(r.pending.Epoch(), payload.Candidate)
	}

	r.hub.relayToOthers(r.ID, c.ID, EventICECandidate, payload)
	metrics.SignalingRelayed.WithLabelValues(EventICECandidate).Inc()
}
