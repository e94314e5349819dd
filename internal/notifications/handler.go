package notifications

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/peerlearn/backend/internal/auth"
	"github.com/peerlearn/backend/pkg/response"
)

// Handler handles notification HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /notifications.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByRecipient(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list})
}

// MarkRead handles PATCH /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	if err := h.repo.MarkRead(c.Request.Context(), id, userID); err != nil {
		response.Internal(c, "failed to mark notification read")
		return
	}
	response.OK(c, gin.H{"id": id, "is_read": true})
}

// MarkAllRead handles PATCH /notifications (mark all read).
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		response.Internal(c, "failed to mark notifications read")
		return
	}
	response.OK(c, gin.H{"is_read": true})
}
