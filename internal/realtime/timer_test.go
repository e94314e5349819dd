package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for timer tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func TestTimerStartsPaused(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	assert.False(t, timer.Running())
	assert.Equal(t, time.Duration(0), timer.Elapsed())

	snap := timer.Snapshot(0)
	assert.EqualValues(t, 0, snap.AccumulatedMillis)
	assert.Nil(t, snap.LastResumeTimestamp)
}

func TestTimerRunsOnlyWithTwoParticipants(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	assert.False(t, timer.Observe(1), "one participant must not start the timer")
	assert.False(t, timer.Running())

	assert.True(t, timer.Observe(2), "second participant resumes")
	assert.True(t, timer.Running())

	assert.False(t, timer.Observe(3), "extra participants are not a transition")
	assert.True(t, timer.Running())

	assert.True(t, timer.Observe(1), "dropping below two pauses")
	assert.False(t, timer.Running())
}

func TestTimerAccumulatesAcrossPauses(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	timer.Observe(2)
	clock.Advance(5 * time.Minute)
	require.True(t, timer.Observe(1))

	// A student refresh mid-session must not inflate taught minutes.
	assert.Equal(t, 5*time.Minute, timer.Elapsed())
	clock.Advance(time.Hour)
	assert.Equal(t, 5*time.Minute, timer.Elapsed(), "paused timer does not accrue")

	timer.Observe(2)
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 7*time.Minute, timer.Elapsed())
}

func TestTimerElapsedMonotonic(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	var last time.Duration
	steps := []struct {
		count   int
		advance time.Duration
	}{
		{1, time.Second}, {2, 30 * time.Second}, {1, 10 * time.Second},
		{2, time.Minute}, {3, time.Second}, {0, time.Minute}, {2, time.Second},
	}
	for _, s := range steps {
		timer.Observe(s.count)
		clock.Advance(s.advance)
		elapsed := timer.Elapsed()
		assert.GreaterOrEqual(t, elapsed, last)
		last = elapsed
	}
}

func TestTimerSnapshotWhileRunning(t *testing.T) {
	clock := newFakeClock()
	timer := NewTimer(clock.Now)

	timer.Observe(2)
	resumedAt := clock.Now().UnixMilli()
	clock.Advance(90 * time.Second)
	timer.Observe(1)
	timer.Observe(2)

	snap := timer.Snapshot(2)
	assert.EqualValues(t, 90_000, snap.AccumulatedMillis)
	require.NotNil(t, snap.LastResumeTimestamp)
	assert.Equal(t, resumedAt+90_000, *snap.LastResumeTimestamp)
	assert.Equal(t, 2, snap.ParticipantCount)
}
