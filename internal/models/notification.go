package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes a notification for client rendering.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is a message delivered to a specific user, persisted and
// pushed over the user's personal realtime channel.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipient_id"`
	Message     string           `json:"message"`
	Type        NotificationType `json:"type"`
	RelatedID   *uuid.UUID       `json:"related_id,omitempty"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}
