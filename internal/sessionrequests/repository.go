package sessionrequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peerlearn/backend/internal/models"
)

// Repository handles session request persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session request repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new pending request.
func (r *Repository) Create(ctx context.Context, req *models.SessionRequest) error {
	const q = `INSERT INTO session_requests (doubt_id, student_id, instructor_id, subject, message)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''))
		RETURNING id, status, requested_at`
	return r.pool.QueryRow(ctx, q, req.DoubtID, req.StudentID, req.InstructorID, req.Subject, req.Message).
		Scan(&req.ID, &req.Status, &req.RequestedAt)
}

const selectColumns = `sr.id, sr.doubt_id, sr.student_id, sr.instructor_id,
	COALESCE(sr.subject,''), COALESCE(sr.message,''), sr.status, sr.final_duration_minutes,
	sr.requested_at, sr.responded_at, s.full_name, i.full_name`

const selectJoins = ` FROM session_requests sr
	JOIN users s ON s.id = sr.student_id
	JOIN users i ON i.id = sr.instructor_id`

func scanRequest(row pgx.Row) (*models.SessionRequest, error) {
	var req models.SessionRequest
	err := row.Scan(&req.ID, &req.DoubtID, &req.StudentID, &req.InstructorID,
		&req.Subject, &req.Message, &req.Status, &req.FinalDurationMinutes,
		&req.RequestedAt, &req.RespondedAt, &req.StudentName, &req.InstructorName)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID returns a request with participant names.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.SessionRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+selectColumns+selectJoins+` WHERE sr.id = $1`, id))
}

// ListForUser returns a user's requests, newest first. Instructors see
// requests addressed to them, students the ones they created.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, role models.Role) ([]*models.SessionRequest, error) {
	filter := ` WHERE sr.student_id = $1`
	if role == models.RoleInstructor {
		filter = ` WHERE sr.instructor_id = $1`
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+selectJoins+filter+` ORDER BY sr.requested_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.SessionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, req)
	}
	return list, rows.Err()
}

// SweepExpired deletes all pending requests older than cutoff and
// returns the distinct instructors they were addressed to, so callers
// can flip them offline in one batch. Expired requests are deleted, not
// kept in a timeout state, matching the decline path.
func (r *Repository) SweepExpired(ctx context.Context, cutoff time.Time) (int, []uuid.UUID, error) {
	const q = `DELETE FROM session_requests
		WHERE status = 'pending' AND requested_at < $1
		RETURNING instructor_id`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	count := 0
	seen := make(map[uuid.UUID]struct{})
	var instructors []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, nil, err
		}
		count++
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			instructors = append(instructors, id)
		}
	}
	return count, instructors, rows.Err()
}

// Accept moves a pending request to accepted. Returns pgx.ErrNoRows if
// the request is no longer pending (transitions are monotonic).
func (r *Repository) Accept(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE session_requests SET status = 'accepted', responded_at = NOW()
		WHERE id = $1 AND status = 'pending' RETURNING id`
	var out uuid.UUID
	return r.pool.QueryRow(ctx, q, id).Scan(&out)
}

// Complete moves an accepted request to completed with its final duration.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, minutes float64) error {
	const q = `UPDATE session_requests SET status = 'completed', final_duration_minutes = $2, responded_at = NOW()
		WHERE id = $1 AND status = 'accepted' RETURNING id`
	var out uuid.UUID
	return r.pool.QueryRow(ctx, q, id, minutes).Scan(&out)
}

// Delete removes a request record (decline path; declined requests are
// not retained).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM session_requests WHERE id = $1`, id)
	return err
}
