package clock

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextUnusedSlotWithinTolerance(t *testing.T) {
	sched := Schedule{Kind: KindSlots, Slots: []string{"09:00", "15:00", "21:00"}}
	now := time.Date(2026, 7, 31, 9, 10, 0, 0, time.UTC)

	id, at, ok := NextUnusedSlot(sched, now, map[string]bool{})
	require.True(t, ok)
	assert.Equal(t, "2026-07-31T09:00", id)
	assert.Equal(t, time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC), at)
}

func TestNextUnusedSlotSkipsUsed(t *testing.T) {
	sched := Schedule{Kind: KindSlots, Slots: []string{"09:00", "15:00"}}
	now := time.Date(2026, 7, 31, 9, 5, 0, 0, time.UTC)

	id, _, found := NextUnusedSlot(sched, now, map[string]bool{"2026-07-31T09:00": true})
	assert.False(t, found)
	assert.Empty(t, id)
}

func TestNextUnusedSlotOutsideToleranceNotDue(t *testing.T) {
	sched := Schedule{Kind: KindSlots, Slots: []string{"09:00"}}
	now := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)

	_, _, ok := NextUnusedSlot(sched, now, map[string]bool{})
	assert.False(t, ok)
}

func TestJitterStaysWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := 10 * time.Minute
	for i := 0; i < 100; i++ {
		j := Jitter(rng, d)
		assert.GreaterOrEqual(t, j, time.Duration(float64(d)*0.9))
		assert.LessOrEqual(t, j, time.Duration(float64(d)*1.1))
	}
}

func TestActiveNowIntervalAlwaysTrue(t *testing.T) {
	sched := Schedule{Kind: KindInterval, Every: time.Minute}
	assert.True(t, ActiveNow(sched, time.Now(), nil))
}
