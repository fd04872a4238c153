package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClockAdvanceFiresAfter(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	fc := NewFakeClock(start)

	ch := fc.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fc.Advance(5 * time.Second)

	select {
	case got := <-ch:
		require.Equal(t, start.Add(5*time.Second), got)
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeClockAfterZeroOrPastFiresImmediately(t *testing.T) {
	fc := NewFakeClock(time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	ch := fc.After(0)
	select {
	case <-ch:
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeClockSetDoesNotFireSubscriptions(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	fc := NewFakeClock(start)
	ch := fc.After(time.Minute)
	fc.Set(start.Add(time.Hour))

	select {
	case <-ch:
		t.Fatal("Set should not fire pending After channels")
	default:
	}
	assert.Equal(t, start.Add(time.Hour), fc.Now())
}
