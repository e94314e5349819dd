package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Identity is the verified (userId, role) pair the identity provider
// attaches to each connection before it may join a room.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Role   string
}

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	UserID uuid.UUID
	Name   string
	Role   string

	// room and participantID are touched only from the readPump
	// goroutine; room state itself is mutated on the room's dispatcher.
	room          *Room
	participantID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger
}

// ServeWs handles the WebSocket upgrade and runs the client loop. The
// token query parameter carries the JWT; validation happens before the
// upgrade so unauthenticated sockets never reach a room.
func ServeWs(hub *Hub, logger *zap.Logger, validate func(token string) (*Identity, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		identity, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			UserID: identity.UserID,
			Name:   identity.Name,
			Role:   identity.Role,
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			logger: logger,
		}
		hub.addClient(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		if c.room != nil {
			c.room.Leave(c)
		}
		c.hub.removeClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case EventJoinRoom:
			c.handleJoinRoom(msg.Data)
		case EventJoinUserRoom:
			c.handleJoinUserRoom(msg.Data)
		case EventOffer:
			// Single-offerer rule: only the instructor ever issues an
			// offer; anything else indicates a misbehaving client.
			if c.Role != string(models.RoleInstructor) {
				c.logger.Warn("offer from non-instructor dropped",
					zap.String("connection_id", c.ID), zap.String("role", c.Role))
				continue
			}
			c.dispatchToRoom(msg)
		case EventInstructorStartedStream:
			if c.Role != string(models.RoleInstructor) {
				continue
			}
			c.dispatchToRoom(msg)
		case EventAnswer, EventICECandidate, EventRequestOffer, EventEndSession,
			EventSendMessage, EventSendReaction, EventDrawLine, EventClearCanvas,
			EventCheckSessionStatus:
			c.dispatchToRoom(msg)
		default:
			// ignore
		}
	}
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var payload JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		c.logger.Warn("malformed join-room", zap.String("connection_id", c.ID))
		return
	}
	if payload.ParticipantID == "" {
		payload.ParticipantID = c.Role + "-" + c.UserID.String()
	}

	// Rejoining another room implicitly leaves the previous one. The
	// registry entry is removed here, not on the old room's dispatcher:
	// both rooms run their own goroutine, and the new room's join must
	// not race the old room's leave over the shared connection id.
	if c.room != nil && c.room.ID != payload.RoomID {
		c.room.Release(c.hub.registry.Leave(c.ID))
		c.room = nil
	}
	if c.room == nil {
		c.room = c.hub.GetOrCreateRoom(payload.RoomID)
		c.participantID = payload.ParticipantID
		c.room.Join(c, payload.ParticipantID)
	}
}

// handleJoinUserRoom subscribes the connection to its personal
// notification channel. The channel follows the verified identity; the
// payload's user id is advisory, and a mismatch is logged but cannot
// redirect another user's notifications here.
func (c *Client) handleJoinUserRoom(data json.RawMessage) {
	var payload JoinUserRoomPayload
	if err := json.Unmarshal(data, &payload); err == nil &&
		payload.UserID != uuid.Nil && payload.UserID != c.UserID {
		c.logger.Warn("join-user-room id mismatch",
			zap.String("connection_id", c.ID),
			zap.String("claimed_user_id", payload.UserID.String()))
	}
	c.hub.JoinUserChannel(c, c.UserID.String())
}

func (c *Client) dispatchToRoom(msg WSMessage) {
	if c.room == nil {
		c.logger.Debug("room event before join-room dropped",
			zap.String("event", msg.Event), zap.String("connection_id", c.ID))
		return
	}
	c.room.Dispatch(c, msg)
}

// trySend queues a message for delivery, dropping it if the client's
// buffer is full rather than blocking a room dispatcher.
func (c *Client) trySend(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		// buffer full, skip
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
