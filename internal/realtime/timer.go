package realtime

import (
	"time"
)

// TimerSnapshot is the wire form of a room timer, broadcast as
// timer-sync so clients derive elapsed time locally without polling.
type TimerSnapshot struct {
	AccumulatedMillis   int64  `json:"accumulated_millis"`
	LastResumeTimestamp *int64 `json:"last_resume_timestamp,omitempty"` // unix millis; nil while paused
	ParticipantCount    int    `json:"participant_count"`
}

// Timer is the per-room accumulated-duration clock. It starts Paused
// and runs only while at least two non-observer participants are
// present, so a peer refreshing their page cannot inflate taught
// minutes. Mutated only from the owning room's dispatch goroutine.
type Timer struct {
	accumulated time.Duration
	lastResume  *time.Time // nil means paused
	now         func() time.Time
}

// NewTimer creates a paused timer. now may be nil for the wall clock.
func NewTimer(now func() time.Time) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now}
}

// Running reports whether the timer is accumulating.
func (t *Timer) Running() bool {
	return t.lastResume != nil
}

// Observe applies the non-observer participant count, transitioning
// Paused->Running when it reaches 2 and Running->Paused when it drops
// below. Returns true when a transition fired.
func (t *Timer) Observe(nonObserverCount int) bool {
	switch {
	case nonObserverCount >= 2 && t.lastResume == nil:
		now := t.now()
		t.lastResume = &now
		return true
	case nonObserverCount < 2 && t.lastResume != nil:
		t.accumulated += t.now().Sub(*t.lastResume)
		t.lastResume = nil
		return true
	}
	return false
}

// Elapsed returns the authoritative elapsed session duration.
func (t *Timer) Elapsed() time.Duration {
	if t.lastResume != nil {
		return t.accumulated + t.now().Sub(*t.lastResume)
	}
	return t.accumulated
}

// Snapshot captures the current state for a timer-sync broadcast or an
// offer stamp.
func (t *Timer) Snapshot(participantCount int) TimerSnapshot {
	snap := TimerSnapshot{
		AccumulatedMillis: t.accumulated.Milliseconds(),
		ParticipantCount:  participantCount,
	}
	if t.lastResume != nil {
		ms := t.lastResume.UnixMilli()
		snap.LastResumeTimestamp = &ms
	}
	return snap
}
