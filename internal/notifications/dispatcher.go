package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peerlearn/backend/internal/models"
	"github.com/peerlearn/backend/internal/realtime"
)

// UserPublisher pushes an event to every live connection of a user.
type UserPublisher interface {
	SendToUser(userID string, event string, payload interface{})
}

// Dispatcher persists notifications and pushes them over the
// recipient's personal realtime channel. Delivery is fire-and-forget:
// failures are logged, never surfaced to the triggering action.
type Dispatcher struct {
	repo   *Repository
	hub    UserPublisher
	logger *zap.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(repo *Repository, hub UserPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{repo: repo, hub: hub, logger: logger}
}

// Notify stores a notification for the recipient and pushes it live.
func (d *Dispatcher) Notify(ctx context.Context, recipientID uuid.UUID, message string, typ models.NotificationType, relatedID *uuid.UUID) {
	n := &models.Notification{
		RecipientID: recipientID,
		Message:     message,
		Type:        typ,
		RelatedID:   relatedID,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		d.logger.Warn("failed to persist notification",
			zap.String("recipient_id", recipientID.String()), zap.Error(err))
		return
	}
	if d.hub != nil {
		d.hub.SendToUser(recipientID.String(), realtime.EventNewNotification, n)
	}
}
