package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubLoop struct {
	name  string
	sched Schedule
}

func (l stubLoop) Name() string                      { return l.name }
func (l stubLoop) RunOnce(ctx context.Context) error { return nil }
func (l stubLoop) Schedule() Schedule                { return l.sched }

func TestDueGatesIntervalScheduleOnEvery(t *testing.T) {
	fc := NewFakeClock(time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	s := NewSupervisor(nil, WithClock(fc))
	loop := stubLoop{name: "discovery", sched: Schedule{Kind: KindInterval, Every: 10 * time.Minute}}

	assert.True(t, s.due(loop), "first check fires immediately")
	assert.False(t, s.due(loop), "a re-check before Every elapses must not fire again")

	fc.Set(fc.Now().Add(5 * time.Minute))
	assert.False(t, s.due(loop), "still short of Every")

	fc.Set(fc.Now().Add(6 * time.Minute))
	assert.True(t, s.due(loop), "Every has elapsed since the last dispatch")
	assert.False(t, s.due(loop), "immediately re-checking resets to not-due")
}

func TestDueTracksEachIntervalLoopIndependently(t *testing.T) {
	fc := NewFakeClock(time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	s := NewSupervisor(nil, WithClock(fc))
	fast := stubLoop{name: "mentions", sched: Schedule{Kind: KindInterval, Every: time.Minute}}
	slow := stubLoop{name: "discovery", sched: Schedule{Kind: KindInterval, Every: time.Hour}}

	assert.True(t, s.due(fast))
	assert.True(t, s.due(slow))

	fc.Set(fc.Now().Add(2 * time.Minute))
	assert.True(t, s.due(fast), "mentions' one-minute interval has elapsed")
	assert.False(t, s.due(slow), "discovery's one-hour interval has not")
}
