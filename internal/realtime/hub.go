package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/metrics"
)

// Publisher publishes room/user events to other instances (Redis pub/sub).
type Publisher interface {
	PublishEvent(channel, instanceID, originConn, event string, payload []byte) error
}

// Subscriber subscribes to a channel and invokes handler for incoming events.
type Subscriber interface {
	Subscribe(channel string, handler func(instanceID, originConn, event string, payload []byte)) (cancel func(), err error)
}

// Hub ties the connection registry, per-room dispatchers and personal
// notification channels together. Local fan-out is complemented by
// Redis pub/sub for cross-instance broadcast; published events carry
// the instance id so an instance never re-delivers its own traffic.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	clients   map[string]*Client            // connection id -> client (local)
	users     map[string]map[string]*Client // user id -> connection id -> client
	roomSubs  map[string]func()
	userSubs  map[string]func()
	liveRooms map[string]bool

	registry   *Registry
	instanceID string
	pub        Publisher
	sub        Subscriber
	logger     *zap.Logger
}

// NewHub creates a realtime hub. pub/sub may be nil for single-instance runs.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	h := &Hub{
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		users:      make(map[string]map[string]*Client),
		roomSubs:   make(map[string]func()),
		userSubs:   make(map[string]func()),
		liveRooms:  make(map[string]bool),
		registry:   NewRegistry(),
		instanceID: uuid.New().String(),
		pub:        pub,
		sub:        sub,
		logger:     logger,
	}
	h.registry.SetParticipantHandlers(
		func(conn *Connection) { metrics.RoomParticipants.Inc() },
		func(conn *Connection) { metrics.RoomParticipants.Dec() },
	)
	return h
}

// Registry exposes the connection registry (membership queries).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// GetOrCreateRoom returns the room for an id, creating it (and its
// dispatch goroutine and cross-instance subscription) on first join.
func (h *Hub) GetOrCreateRoom(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r
	}
	r := newRoom(roomID, h, h.logger)
	h.rooms[roomID] = r
	metrics.ActiveRooms.Inc()
	if h.sub != nil {
		cancel, err := h.sub.Subscribe(roomChannel(roomID), func(instanceID, origin, event string, payload []byte) {
			if instanceID == h.instanceID {
				return
			}
			h.deliverLocal(roomID, event, payload, origin)
		})
		if err == nil {
			h.roomSubs[roomID] = cancel
		} else {
			h.logger.Warn("room subscription failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	h.logger.Info("room created", zap.String("room_id", roomID))
	return r
}

// removeRoom discards all in-memory room state. Called from the room's
// own dispatch goroutine when its last connection leaves; nothing
// survives except what the session-request store already persisted.
func (h *Hub) removeRoom(r *Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[r.ID] != r {
		return
	}
	delete(h.rooms, r.ID)
	delete(h.liveRooms, r.ID)
	if cancel, ok := h.roomSubs[r.ID]; ok {
		cancel()
		delete(h.roomSubs, r.ID)
	}
	metrics.ActiveRooms.Dec()
}

// Room returns the live room for an id, or nil.
func (h *Hub) Room(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

// RoomElapsed returns the authoritative elapsed duration for a live
// room. ok is false when no such room exists in memory.
func (h *Hub) RoomElapsed(roomID string) (time.Duration, bool) {
	r := h.Room(roomID)
	if r == nil {
		return 0, false
	}
	return r.Elapsed()
}

// addClient tracks a connected client for targeted delivery.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.ActiveConnections.Inc()
}

// removeClient drops a client and its personal channel membership.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	for userID, conns := range h.users {
		if _, ok := conns[c.ID]; ok {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.users, userID)
				if cancel, ok := h.userSubs[userID]; ok {
					cancel()
					delete(h.userSubs, userID)
				}
			}
		}
	}
	h.mu.Unlock()
	metrics.ActiveConnections.Dec()
}

// JoinUserChannel subscribes a client to its personal notification channel.
func (h *Hub) JoinUserChannel(c *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]*Client)
		if h.sub != nil {
			cancel, err := h.sub.Subscribe(userChannel(userID), func(instanceID, origin, event string, payload []byte) {
				if instanceID == h.instanceID {
					return
				}
				h.deliverUserLocal(userID, event, payload)
			})
			if err == nil {
				h.userSubs[userID] = cancel
			}
		}
	}
	h.users[userID][c.ID] = c
	h.logger.Debug("client joined personal channel", zap.String("user_id", userID), zap.String("connection_id", c.ID))
}

// SendToUser delivers a fire-and-forget event to every connection of a
// user, locally and on other instances.
func (h *Hub) SendToUser(userID string, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.deliverUserLocal(userID, event, data)
	if h.pub != nil {
		_ = h.pub.PublishEvent(userChannel(userID), h.instanceID, "", event, data)
	}
}

func (h *Hub) deliverUserLocal(userID, event string, data []byte) {
	msg := WSMessage{Event: event, Data: data}
	h.mu.RLock()
	conns := h.users[userID]
	targets := make([]*Client, 0, len(conns))
	for _, c := range conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.trySend(msg)
	}
}

// broadcast fans an event out to every connection in a room, the
// sender's own included, and publishes it for other instances.
func (h *Hub) broadcast(roomID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.deliverLocal(roomID, event, data, "")
	if h.pub != nil {
		_ = h.pub.PublishEvent(roomChannel(roomID), h.instanceID, "", event, data)
	}
}

// relayToOthers delivers to every room connection except the
// originating one. Other instances exclude nothing: the origin
// connection only exists here.
func (h *Hub) relayToOthers(roomID, originConn, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.deliverLocal(roomID, event, data, originConn)
	if h.pub != nil {
		_ = h.pub.PublishEvent(roomChannel(roomID), h.instanceID, originConn, event, data)
	}
}

func (h *Hub) deliverLocal(roomID, event string, data []byte, exceptConn string) {
	msg := WSMessage{Event: event, Data: data}
	members := h.registry.ListRoom(roomID)
	h.mu.RLock()
	targets := make([]*Client, 0, len(members))
	for _, conn := range members {
		if conn.ID == exceptConn {
			continue
		}
		if c, ok := h.clients[conn.ID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.trySend(msg)
	}
}

func (h *Hub) setLive(roomID string, live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if live {
		h.liveRooms[roomID] = true
	} else {
		delete(h.liveRooms, roomID)
	}
}

func (h *Hub) isLive(roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.liveRooms[roomID]
}

func roomChannel(roomID string) string { return "room:" + roomID }
func userChannel(userID string) string { return "user:" + userID }

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
