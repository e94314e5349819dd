package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms is the number of live session rooms in this instance.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_rooms_active",
			Help: "Current number of live session rooms",
		},
	)

	// ActiveConnections is the number of open WebSocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Current number of open WebSocket connections",
		},
	)

	// RoomParticipants is the number of registered room participants.
	RoomParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_participants_active",
			Help: "Current number of connections registered in rooms",
		},
	)

	// SignalingRelayed counts relayed signaling messages per event kind.
	SignalingRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_relayed_total",
			Help: "Total signaling messages relayed, by event",
		},
		[]string{"event"},
	)

	// SignalingDropped counts signaling messages dropped for lack of peers.
	SignalingDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaling_dropped_total",
			Help: "Total signaling messages dropped with no peers present, by event",
		},
		[]string{"event"},
	)

	// SideChannelEvents counts chat/reaction/whiteboard events per kind.
	SideChannelEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_channel_events_total",
			Help: "Total side-channel events broadcast, by event",
		},
		[]string{"event"},
	)

	// NegotiationResets counts hard resets of room negotiation state.
	NegotiationResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "negotiation_resets_total",
			Help: "Total negotiation epoch resets (new offers and request-offers)",
		},
	)

	// TimerTransitions counts room timer pause/resume transitions.
	TimerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_timer_transitions_total",
			Help: "Total room timer transitions, by direction (resume/pause)",
		},
		[]string{"direction"},
	)

	// ExpiredRequests counts session requests removed by the lazy sweep.
	ExpiredRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_requests_expired_total",
			Help: "Total pending session requests expired by the staleness sweep",
		},
	)

	// SessionDuration observes completed session lengths in minutes.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "session_duration_minutes",
			Help:    "Final duration of completed sessions in minutes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9),
		},
	)
)
