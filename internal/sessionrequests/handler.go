package sessionrequests

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/auth"
	"github.com/peerlearn/backend/internal/metrics"
	"github.com/peerlearn/backend/internal/models"
	"github.com/peerlearn/backend/pkg/response"
)

// RoomTimers reads the authoritative elapsed time of a live room. The
// request id doubles as the room id.
type RoomTimers interface {
	RoomElapsed(roomID string) (time.Duration, bool)
}

// RequestStore is the session-request persistence the handler needs,
// satisfied by *Repository.
type RequestStore interface {
	Create(ctx context.Context, req *models.SessionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error)
	ListForUser(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.SessionRequest, error)
	SweepExpired(ctx context.Context, cutoff time.Time) (int, []uuid.UUID, error)
	Accept(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, minutes float64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UserStore is the user persistence the handler needs, satisfied by
// *auth.Repository.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetManyOffline(ctx context.Context, ids []uuid.UUID) error
	ApplyCompletionStats(ctx context.Context, studentID, instructorID uuid.UUID, minutes float64) error
}

// Notifier delivers a fire-and-forget notification, satisfied by
// *notifications.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, message string, typ models.NotificationType, relatedID *uuid.UUID)
}

// CreateRequest is the body for POST /session-requests.
type CreateRequest struct {
	InstructorID uuid.UUID  `json:"instructor_id" binding:"required"`
	DoubtID      *uuid.UUID `json:"doubt_id"`
	Subject      string     `json:"subject"`
	Message      string     `json:"message"`
}

// UpdateRequest is the body for PATCH /session-requests/:id.
type UpdateRequest struct {
	Status          string   `json:"status" binding:"required,oneof=accepted completed"`
	DurationMinutes *float64 `json:"duration_minutes"` // fallback when the room is already gone
}

// Handler coordinates the session request lifecycle: pending ->
// accepted -> completed, with decline and the lazy expiry sweep.
type Handler struct {
	repo       RequestStore
	users      UserStore
	notifier   Notifier
	timers     RoomTimers
	pendingTTL time.Duration
	logger     *zap.Logger
}

// NewHandler creates a session request handler.
func NewHandler(repo RequestStore, users UserStore, notifier Notifier, timers RoomTimers, pendingTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		repo:       repo,
		users:      users,
		notifier:   notifier,
		timers:     timers,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// Create handles POST /session-requests (student asks for a session).
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	userName, _ := c.MustGet(auth.ContextUserName).(string)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	instructor, err := h.users.GetByID(c.Request.Context(), req.InstructorID)
	if err != nil || instructor.Role != models.RoleInstructor || !instructor.IsVerified {
		response.BadRequest(c, "invalid or unverified instructor")
		return
	}

	sr := &models.SessionRequest{
		DoubtID:      req.DoubtID,
		StudentID:    userID,
		InstructorID: req.InstructorID,
		Subject:      req.Subject,
		Message:      req.Message,
	}
	if err := h.repo.Create(c.Request.Context(), sr); err != nil {
		response.Internal(c, "failed to create session request")
		return
	}

	subject := sr.Subject
	if subject == "" {
		subject = "Doubt"
	}
	h.notifier.Notify(c.Request.Context(), instructor.ID,
		fmt.Sprintf("New session request from %s for %q", userName, subject),
		models.NotificationInfo, &sr.ID)

	response.Created(c, sr)
}

// List handles GET /session-requests. The staleness sweep runs first:
// pending requests older than the TTL are deleted and their instructors
// flipped offline, so a silent instructor cannot stay marked available.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	role, _ := c.MustGet(auth.ContextUserRole).(string)

	cutoff := time.Now().Add(-h.pendingTTL)
	expired, instructors, err := h.repo.SweepExpired(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.Warn("expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		if err := h.users.SetManyOffline(c.Request.Context(), instructors); err != nil {
			h.logger.Warn("failed to set instructors offline", zap.Error(err))
		}
		metrics.ExpiredRequests.Add(float64(expired))
		h.logger.Info("expired stale session requests",
			zap.Int("expired", expired), zap.Int("instructors_offline", len(instructors)))
	}

	list, err := h.repo.ListForUser(c.Request.Context(), userID, models.Role(role))
	if err != nil {
		response.Internal(c, "failed to list session requests")
		return
	}
	response.OK(c, gin.H{"requests": list})
}

// GetByID handles GET /session-requests/:id (participants only).
func (h *Handler) GetByID(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	sr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "session request not found")
		return
	}
	if sr.StudentID != userID && sr.InstructorID != userID {
		response.Forbidden(c, "access denied")
		return
	}
	response.OK(c, sr)
}

// Update handles PATCH /session-requests/:id (instructor accepts or completes).
func (h *Handler) Update(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	userName, _ := c.MustGet(auth.ContextUserName).(string)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "session request not found")
		return
	}
	if sr.InstructorID != userID {
		response.Forbidden(c, "access denied")
		return
	}

	next := models.RequestStatus(req.Status)
	if !sr.Status.CanTransitionTo(next) {
		response.Conflict(c, fmt.Sprintf("cannot move request from %s to %s", sr.Status, next))
		return
	}

	switch next {
	case models.StatusAccepted:
		h.accept(c, sr, userName)
	case models.StatusCompleted:
		h.complete(c, sr, req.DurationMinutes)
	}
}

func (h *Handler) accept(c *gin.Context, sr *models.SessionRequest, instructorName string) {
	if err := h.repo.Accept(c.Request.Context(), sr.ID); err != nil {
		response.Conflict(c, "request is no longer pending")
		return
	}

	subject := sr.Subject
	if subject == "" {
		subject = "Doubt Session"
	}
	h.notifier.Notify(c.Request.Context(), sr.StudentID,
		fmt.Sprintf("Your session request for %q has been accepted by %s!", subject, instructorName),
		models.NotificationSuccess, &sr.ID)

	sr.Status = models.StatusAccepted
	response.OK(c, sr)
}

func (h *Handler) complete(c *gin.Context, sr *models.SessionRequest, fallback *float64) {
	// The room id is the request id; while the room is alive its timer
	// is authoritative. After teardown the client-reported duration is
	// the only record left.
	var minutes float64
	if elapsed, ok := h.timers.RoomElapsed(sr.ID.String()); ok {
		minutes = models.DurationMinutes(elapsed)
	} else if fallback != nil {
		minutes = *fallback
	}

	if err := h.repo.Complete(c.Request.Context(), sr.ID, minutes); err != nil {
		response.Conflict(c, "request is not in an accepted state")
		return
	}

	if err := h.users.ApplyCompletionStats(c.Request.Context(), sr.StudentID, sr.InstructorID, minutes); err != nil {
		h.logger.Warn("failed to update session statistics",
			zap.String("request_id", sr.ID.String()), zap.Error(err))
	}
	metrics.SessionDuration.Observe(minutes)

	sr.Status = models.StatusCompleted
	sr.FinalDurationMinutes = &minutes
	response.OK(c, sr)
}

// Delete handles DELETE /session-requests/:id (instructor declines).
// The record is removed rather than kept in a rejected state.
func (h *Handler) Delete(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	userName, _ := c.MustGet(auth.ContextUserName).(string)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}

	sr, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.NotFound(c, "session request not found")
		return
	}
	if sr.InstructorID != userID {
		response.Forbidden(c, "access denied")
		return
	}

	subject := sr.Subject
	if subject == "" {
		subject = "Doubt Session"
	}
	// Request is deleted, so the notification carries no related id.
	h.notifier.Notify(c.Request.Context(), sr.StudentID,
		fmt.Sprintf("Your session request for %q was declined by %s.", subject, userName),
		models.NotificationWarning, nil)

	if err := h.repo.Delete(c.Request.Context(), sr.ID); err != nil {
		response.Internal(c, "failed to delete session request")
		return
	}
	response.OK(c, gin.H{"message": "request declined and deleted"})
}
