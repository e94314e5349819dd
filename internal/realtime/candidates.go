package realtime

import (
	"github.com/pion/webrtc/v3"
)

// CandidateQueue is the server-side mirror of the buffer the receiving
// peer keeps for ICE candidates that arrive before the remote
// description of the current negotiation epoch is applied. The relay
// forwards every candidate immediately; the queue records which of
// them belong to the live epoch, so a superseding offer invalidates
// the lot at once and the answer settles it. Within an epoch order is
// arrival order and nothing is dropped.
//
// Owned by a room and touched only from that room's dispatch goroutine,
// so no locking is needed.
type CandidateQueue struct {
	epoch uint64
	items []webrtc.ICECandidateInit
}

// NewCandidateQueue creates an empty queue at epoch 0.
func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{}
}

// Epoch returns the current negotiation epoch.
func (q *CandidateQueue) Epoch() uint64 {
	return q.epoch
}

// NextEpoch starts a new negotiation epoch, invalidating all queued
// candidates from the previous one.
func (q *CandidateQueue) NextEpoch() uint64 {
	q.epoch++
	q.items = q.items[:0]
	return q.epoch
}

// Push appends a candidate for the given epoch. Candidates tagged with
// a superseded epoch are rejected.
func (q *CandidateQueue) Push(epoch uint64, c webrtc.ICECandidateInit) bool {
	if epoch != q.epoch {
		return false
	}
	q.items = append(q.items, c)
	return true
}

// Flush returns all queued candidates for the given epoch in arrival
// order and empties the queue. A stale epoch yields nothing.
func (q *CandidateQueue) Flush(epoch uint64) []webrtc.ICECandidateInit {
	if epoch != q.epoch || len(q.items) == 0 {
		return nil
	}
	out := make([]webrtc.ICECandidateInit, len(q.items))
	copy(out, q.items)
	q.items = q.items[:0]
	return out
}

// Len returns the number of queued candidates.
func (q *CandidateQueue) Len() int {
	return len(q.items)
}
