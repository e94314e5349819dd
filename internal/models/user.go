package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// SessionStatus is the instructor availability flag for new session requests.
type SessionStatus string

const (
	SessionStatusAvailable SessionStatus = "available"
	SessionStatusOffline   SessionStatus = "offline"
)

// User represents a platform user.
type User struct {
	ID               uuid.UUID     `json:"id"`
	Email            string        `json:"email"`
	Password         string        `json:"-"`
	FullName         string        `json:"full_name"`
	Role             Role          `json:"role"`
	IsVerified       bool          `json:"is_verified"`
	StatusForSession SessionStatus `json:"status_for_session"`
	SessionsAttended int           `json:"sessions_attended"`
	SessionsTaken    int           `json:"sessions_taken"`
	MinutesTaught    float64       `json:"minutes_taught"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID               uuid.UUID     `json:"id"`
	Email            string        `json:"email"`
	FullName         string        `json:"full_name"`
	Role             Role          `json:"role"`
	StatusForSession SessionStatus `json:"status_for_session"`
	SessionsAttended int           `json:"sessions_attended"`
	SessionsTaken    int           `json:"sessions_taken"`
	MinutesTaught    float64       `json:"minutes_taught"`
	CreatedAt        time.Time     `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             u.Role,
		StatusForSession: u.StatusForSession,
		SessionsAttended: u.SessionsAttended,
		SessionsTaken:    u.SessionsTaken,
		MinutesTaught:    u.MinutesTaught,
		CreatedAt:        u.CreatedAt,
	}
}
