package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlearn/backend/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, is_verified, status_for_session,
	sessions_attended, sessions_taken, minutes_taught, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.Role, &u.IsVerified, &u.StatusForSession,
		&u.SessionsAttended, &u.SessionsTaken, &u.MinutesTaught, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)))
}

// SetSessionStatus updates an instructor's availability flag.
func (r *Repository) SetSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus) error {
	const q = `UPDATE users SET status_for_session = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, string(status))
	return err
}

// SetManyOffline flips the given instructors' availability to offline in one batch.
func (r *Repository) SetManyOffline(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE users SET status_for_session = 'offline', updated_at = NOW() WHERE id = ANY($1)`
	_, err := r.pool.Exec(ctx, q, ids)
	return err
}

// ApplyCompletionStats rolls a completed session into both participants'
// aggregate statistics: the student's attended count, the instructor's
// taken count and cumulative minutes taught.
func (r *Repository) ApplyCompletionStats(ctx context.Context, studentID, instructorID uuid.UUID, minutes float64) error {
	const studentQ = `UPDATE users SET sessions_attended = sessions_attended + 1, updated_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, studentQ, studentID); err != nil {
		return err
	}
	const instructorQ = `UPDATE users SET sessions_taken = sessions_taken + 1, minutes_taught = minutes_taught + $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, instructorQ, instructorID, minutes)
	return err
}
