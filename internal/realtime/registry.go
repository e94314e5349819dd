package realtime

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// ObserverPrefix marks participant ids that watch a room without
// counting toward the signaling pair or the timer.
const ObserverPrefix = "observer-"

var (
	// ErrDuplicateConnection is returned when a connection id is already registered.
	ErrDuplicateConnection = errors.New("connection already registered")
)

// Connection maps one live transport connection to its room identity.
type Connection struct {
	ID            string
	RoomID        string
	ParticipantID string
	Role          string
	IsObserver    bool
	JoinedAt      time.Time
}

// ParticipantEventHandler is invoked after a connection joins or leaves
// a room (e.g. for metrics and room lifecycle bookkeeping).
type ParticipantEventHandler func(conn *Connection)

// Registry tracks live connections per room. It is the sole owner of
// Connection records; rooms consult it for membership and peer counts.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	rooms   map[string]map[string]*Connection
	onJoin  ParticipantEventHandler
	onLeave ParticipantEventHandler
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// SetParticipantHandlers sets callbacks fired after join and leave.
func (r *Registry) SetParticipantHandlers(onJoin, onLeave ParticipantEventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onJoin = onJoin
	r.onLeave = onLeave
}

// IsObserver reports whether a participant id denotes an observer.
func IsObserver(participantID string) bool {
	return strings.HasPrefix(participantID, ObserverPrefix)
}

// Join registers a connection in a room. Fails with
// ErrDuplicateConnection if the connection id is already registered.
func (r *Registry) Join(connID, roomID, participantID, role string) (*Connection, error) {
	r.mu.Lock()
	if _, exists := r.conns[connID]; exists {
		r.mu.Unlock()
		return nil, ErrDuplicateConnection
	}
	conn := &Connection{
		ID:            connID,
		RoomID:        roomID,
		ParticipantID: participantID,
		Role:          role,
		IsObserver:    IsObserver(participantID),
		JoinedAt:      time.Now(),
	}
	r.conns[connID] = conn
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]*Connection)
	}
	r.rooms[roomID][connID] = conn
	onJoin := r.onJoin
	r.mu.Unlock()

	if onJoin != nil {
		onJoin(conn)
	}
	return conn, nil
}

// Leave removes a connection. Unknown ids are a no-op since transport
// disconnects can race; returns the removed connection or nil.
func (r *Registry) Leave(connID string) *Connection {
	r.mu.Lock()
	conn, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.conns, connID)
	if members := r.rooms[conn.RoomID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, conn.RoomID)
		}
	}
	onLeave := r.onLeave
	r.mu.Unlock()

	if onLeave != nil {
		onLeave(conn)
	}
	return conn
}

// Get returns the connection for an id, or nil.
func (r *Registry) Get(connID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

// ListRoom returns all connections in a room.
func (r *Registry) ListRoom(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]*Connection, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// ListNonObserverPeers returns the signaling peers of a room (expected
// at most two).
func (r *Registry) ListNonObserverPeers(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Connection
	for _, c := range r.rooms[roomID] {
		if !c.IsObserver {
			out = append(out, c)
		}
	}
	return out
}

// NonObserverCount returns the number of timer-eligible participants in a room.
func (r *Registry) NonObserverCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.rooms[roomID] {
		if !c.IsObserver {
			n++
		}
	}
	return n
}

// RoomSize returns the number of connections in a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
