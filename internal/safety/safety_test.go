package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStoreAllowAndRecord(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	q := NewQuotaStore(clock)
	q.Configure("post", Window{Name: "daily", Duration: 24 * time.Hour, Limit: 2})

	allowed, _ := q.Allow("post")
	require.True(t, allowed)
	q.Record("post")
	q.Record("post")

	allowed, w := q.Allow("post")
	require.False(t, allowed)
	assert.Equal(t, "daily", w.Name)
	assert.Equal(t, 0, q.Remaining("post"))
}

func TestQuotaStoreResetsCountAfterPeriodElapses(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	q := NewQuotaStore(clock)
	q.Configure("post", Window{Name: "hourly", Duration: time.Hour, Limit: 1})
	q.Record("post")

	now = now.Add(2 * time.Hour)
	allowed, _ := q.Allow("post")
	assert.True(t, allowed)
}

func TestAuthorThrottleLimitsToOnePerDay(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	th := NewAuthorThrottle(24*time.Hour, 1, clock)

	assert.True(t, th.Allow("alice"))
	th.Record("alice")
	assert.False(t, th.Allow("alice"))
	assert.True(t, th.Allow("bob"))
}

func TestBannedPhraseFilterCaseInsensitive(t *testing.T) {
	f := NewBannedPhraseFilter([]string{"Buy Now", "guaranteed returns"})

	phrase, matched := f.Check("Act now: GUARANTEED RETURNS on every trade")
	assert.True(t, matched)
	assert.Equal(t, "guaranteed returns", phrase)

	_, matched = f.Check("just sharing market commentary")
	assert.False(t, matched)
}

func TestProductMentionTrackerRatioAndWouldExceed(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := NewProductMentionTracker(24*time.Hour, clock)

	tr.Record(false)
	tr.Record(false)
	tr.Record(false)
	assert.InDelta(t, 0.0, tr.Ratio(), 0.0001)
	assert.False(t, tr.WouldExceed(0.3))

	tr.Record(true)
	assert.InDelta(t, 0.25, tr.Ratio(), 0.0001)
	assert.True(t, tr.WouldExceed(0.2))
}
