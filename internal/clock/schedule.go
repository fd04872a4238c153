package clock

import (
	"math/rand"
	"sort"
	"time"
)

// Kind distinguishes the two scheduling modes a loop can run under, mirroring
// internal/cron/types.go's Schedule.Kind (cron/every/at) generalized to the
// two modes spec.md §4.1 describes: a fixed daily slot list, or a steady
// interval tick.
type Kind int

const (
	// KindInterval runs the loop every Every duration.
	KindInterval Kind = iota
	// KindSlots runs the loop once per listed daily clock-time slot.
	KindSlots
)

// SlotTolerance is how far before or after a slot's nominal time a loop may
// still claim it as "due", grounded on original_source content_loop.rs's
// slot-matching window.
const SlotTolerance = 15 * time.Minute

// JitterFraction is the maximum fractional jitter Jitter applies, matching
// content_loop.rs's apply_slot_jitter (±10%). The Supervisor does not call
// Jitter: interval gates and slot times are used unjittered.
const JitterFraction = 0.10

// Schedule describes when a loop is allowed to run.
type Schedule struct {
	Kind Kind
	// Every is the tick interval for KindInterval schedules.
	Every time.Duration
	// Slots are "HH:MM" times of day for KindSlots schedules. Not
	// required to be sorted; NextUnusedSlot sorts a copy.
	Slots []string
	// Timezone is the location slot times are interpreted in. Defaults
	// to UTC when nil.
	Timezone *time.Location
}

func (s Schedule) loc() *time.Location {
	if s.Timezone == nil {
		return time.UTC
	}
	return s.Timezone
}

// Jitter returns d adjusted by a random +/-JitterFraction offset, using rng
// for reproducible tests (pass rand.New(rand.NewSource(seed)) in tests, or
// rand.New backed by a crypto seed in production callers).
func Jitter(rng *rand.Rand, d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := float64(d) * JitterFraction
	offset := (rng.Float64()*2 - 1) * spread
	out := time.Duration(float64(d) + offset)
	if out < 0 {
		return 0
	}
	return out
}

// NextUnusedSlot returns the earliest configured daily slot that is not
// present in `used` (slot identifiers already consumed, e.g.
// "2026-07-31T09:00") and whose nominal time lies within SlotTolerance of
// `from`. It returns ok=false when no unused slot is within that window,
// including when the remaining unused slots are later in the day; it does
// not report the time of a future slot or how long to wait for it.
//
// Grounded on content_loop.rs's next_unused_slot: slots are matched against
// the current wall-clock time with a tolerance window rather than requiring
// an exact match, since loop ticks rarely land on the slot boundary itself.
func NextUnusedSlot(s Schedule, from time.Time, used map[string]bool) (slotID string, at time.Time, ok bool) {
	if len(s.Slots) == 0 {
		return "", time.Time{}, false
	}
	loc := s.loc()
	local := from.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	sorted := make([]string, len(s.Slots))
	copy(sorted, s.Slots)
	sort.Strings(sorted)

	for _, slot := range sorted {
		t, err := time.ParseInLocation("15:04", slot, loc)
		if err != nil {
			continue
		}
		slotTime := day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
		id := slotTime.Format("2006-01-02T15:04")
		if used[id] {
			continue
		}
		diff := local.Sub(slotTime)
		if diff < -SlotTolerance {
			// Slot is still in the future beyond tolerance; it's the
			// next candidate but not due yet.
			continue
		}
		if diff > SlotTolerance {
			// Missed the window; treat as unused-but-skippable so the
			// caller can decide whether to still post or roll forward.
			continue
		}
		return id, slotTime, true
	}
	return "", time.Time{}, false
}

// ActiveNow reports whether the schedule currently permits a run. For
// KindInterval schedules this is always true (the interval ticker is the
// gate); for KindSlots it defers to NextUnusedSlot's tolerance window.
func ActiveNow(s Schedule, now time.Time, used map[string]bool) bool {
	switch s.Kind {
	case KindSlots:
		_, _, ok := NextUnusedSlot(s, now, used)
		return ok
	default:
		return true
	}
}
