package realtime

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/metrics"
)

// broadcastSideChannel fans out ephemeral room traffic: chat, emoji
// reactions and whiteboard strokes. Nothing is persisted beyond the
// live room. Chat and reactions are echoed back to the sender's own
// connections so multi-tab senders stay in sync; whiteboard events go
// to the other connections only, since the drawer already rendered
// locally. Per-kind ordering follows from per-room serial dispatch.
func (r *Room) broadcastSideChannel(c *Client, msg WSMessage) {
	metrics.SideChannelEvents.WithLabelValues(msg.Event).Inc()

	switch msg.Event {
	case EventSendMessage:
		var payload ChatPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			r.logger.Warn("malformed chat message", zap.String("room_id", r.ID), zap.Error(err))
			return
		}
		payload.RoomID = r.ID
		if payload.SenderLabel == "" {
			payload.SenderLabel = c.Name
		}
		if payload.Timestamp == 0 {
			payload.Timestamp = time.Now().UnixMilli()
		}
		r.hub.broadcast(r.ID, EventReceiveMessage, payload)

	case EventSendReaction:
		var payload ReactionPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			r.logger.Warn("malformed reaction", zap.String("room_id", r.ID), zap.Error(err))
			return
		}
		payload.RoomID = r.ID
		r.hub.broadcast(r.ID, EventReceiveReaction, payload)

	case EventDrawLine:
		var payload DrawLinePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			r.logger.Warn("malformed draw-line", zap.String("room_id", r.ID), zap.Error(err))
			return
		}
		payload.RoomID = r.ID
		r.hub.relayToOthers(r.ID, c.ID, EventDrawLine, payload)

	case EventClearCanvas:
		r.hub.relayToOthers(r.ID, c.ID, EventClearCanvas, RoomPayload{RoomID: r.ID})

	case EventInstructorStartedStream:
		r.hub.setLive(r.ID, true)
		r.hub.relayToOthers(r.ID, c.ID, EventInstructorStartedStream, RoomPayload{RoomID: r.ID})
	}
}
