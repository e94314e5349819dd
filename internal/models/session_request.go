package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// RequestStatus is the lifecycle state of a session request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusRejected  RequestStatus = "rejected"
	StatusTimeout   RequestStatus = "timeout"
	StatusCompleted RequestStatus = "completed"
)

// CanTransitionTo reports whether s may move to next. Transitions are
// monotonic: pending may move to accepted/rejected/timeout, accepted to
// completed, and terminal states absorb.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusAccepted || next == StatusRejected || next == StatusTimeout
	case StatusAccepted:
		return next == StatusCompleted
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusTimeout || s == StatusCompleted
}

// SessionRequest is a student's request for a live tutoring session.
// Its id doubles as the room id once the request is accepted.
type SessionRequest struct {
	ID                   uuid.UUID     `json:"id"`
	DoubtID              *uuid.UUID    `json:"doubt_id,omitempty"`
	StudentID            uuid.UUID     `json:"student_id"`
	InstructorID         uuid.UUID     `json:"instructor_id"`
	Subject              string        `json:"subject,omitempty"`
	Message              string        `json:"message,omitempty"`
	Status               RequestStatus `json:"status"`
	FinalDurationMinutes *float64      `json:"final_duration_minutes,omitempty"`
	RequestedAt          time.Time     `json:"requested_at"`
	RespondedAt          *time.Time    `json:"responded_at,omitempty"`

	StudentName    string `json:"student_name,omitempty"`
	InstructorName string `json:"instructor_name,omitempty"`
}

// DurationMinutes converts an elapsed session duration to minutes with
// one-decimal precision (754000ms -> 12.6).
func DurationMinutes(elapsed time.Duration) float64 {
	return math.Round(elapsed.Minutes()*10) / 10
}
