package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlearn/backend/internal/models"
)

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a notification.
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	const q = `INSERT INTO notifications (recipient_id, message, type, related_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_read, created_at`
	return r.pool.QueryRow(ctx, q, n.RecipientID, n.Message, string(n.Type), n.RelatedID).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
}

// ListByRecipient returns a user's notifications, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID uuid.UUID) ([]*models.Notification, error) {
	const q = `SELECT id, recipient_id, message, type, related_id, is_read, created_at
		FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT 100`
	rows, err := r.pool.Query(ctx, q, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Message, &n.Type, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &n)
	}
	return list, rows.Err()
}

// MarkRead marks one notification read, scoped to its recipient.
func (r *Repository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	const q = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	_, err := r.pool.Exec(ctx, q, id, recipientID)
	return err
}

// MarkAllRead marks all of a user's notifications read.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	const q = `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE`
	_, err := r.pool.Exec(ctx, q, recipientID)
	return err
}
