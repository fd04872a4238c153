package safety

import (
	"sync"
	"time"
)

// AuthorThrottle limits how often the bot engages (replies to, likes,
// follows) the same author within a day, per spec.md's Author throttle
// entry data model. It uses the same mutex+map shape as QuotaStore, scoped
// per author instead of per action.
type AuthorThrottle struct {
	mu       sync.Mutex
	clock    func() time.Time
	window   time.Duration
	limit    int
	byAuthor map[string][]time.Time
}

// NewAuthorThrottle builds a throttle allowing at most limit engagements per
// author within window (spec.md default: 1 per author per day).
func NewAuthorThrottle(window time.Duration, limit int, clock func() time.Time) *AuthorThrottle {
	if clock == nil {
		clock = time.Now
	}
	return &AuthorThrottle{
		clock:    clock,
		window:   window,
		limit:    limit,
		byAuthor: make(map[string][]time.Time),
	}
}

// Allow reports whether the author may be engaged again right now.
func (t *AuthorThrottle) Allow(author string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	cutoff := now.Add(-t.window)
	count := 0
	for _, ts := range t.byAuthor[author] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count < t.limit
}

// Record marks the author as engaged at the current time.
func (t *AuthorThrottle) Record(author string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	cutoff := now.Add(-t.window)
	events := append(t.byAuthor[author], now)
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.byAuthor[author] = kept
}
