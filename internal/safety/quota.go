// Package safety implements the rolling-window quota, per-author throttle,
// banned-phrase filter and product-mention ratio tracker that back the
// policy evaluator's safety checks (§4.4).
package safety

import (
	"sync"
	"time"
)

// Window is a named fixed window a quota applies over.
type Window struct {
	Name     string
	Duration time.Duration
	Limit    int
}

// quotaEntry is the canonical { period_start, count } pair spec.md §4.4's
// rolling window rule keeps per action: period_start only ever advances,
// and count only ever resets to 0, once the store is accessed after the
// period has fully elapsed.
type quotaEntry struct {
	periodStart time.Time
	count       int
}

// QuotaStore counts actions against one or more lazy-reset fixed windows in
// memory, guarded by a mutex the way internal/ratelimit/limiter.go guards
// its token buckets. Each window keeps a single { period_start, count }
// pair per action exactly as spec.md §4.4's canonical pseudocode states:
//
//	let entry = load(a) ?? { period_start: now, count: 0 }
//	if now - entry.period_start >= P then entry := { period_start: now, count: 0 }
//	entry.count += 1; save(a, entry)
//	entry.count <= N
//
// This is a fixed window, not a sliding one: a burst at the tail of one
// period and the head of the next can together exceed N within any D-wide
// span, which is the tradeoff the spec's own algorithm makes in exchange
// for O(1) state per action-window instead of an unbounded event log.
type QuotaStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	windows map[string][]Window              // action -> configured windows
	entries map[string]map[string]quotaEntry // action -> window name -> entry
}

// NewQuotaStore builds a QuotaStore. clock defaults to time.Now when nil.
func NewQuotaStore(clock func() time.Time) *QuotaStore {
	if clock == nil {
		clock = time.Now
	}
	return &QuotaStore{
		clock:   clock,
		windows: make(map[string][]Window),
		entries: make(map[string]map[string]quotaEntry),
	}
}

// Configure sets the windows that apply to a given action (e.g. "post",
// "reply", "like"). Calling Configure replaces any prior configuration (and
// any accumulated entries) for that action.
func (q *QuotaStore) Configure(action string, windows ...Window) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.windows[action] = windows
	delete(q.entries, action)
}

// Allow reports whether recording one more occurrence of action would stay
// within every configured window's limit, without recording it.
func (q *QuotaStore) Allow(action string) (bool, Window) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	for _, w := range q.windows[action] {
		entry, ok := q.entries[action][w.Name]
		if ok && now.Sub(entry.periodStart) >= w.Duration {
			ok = false // period elapsed: the next access resets count to 0
		}
		count := 0
		if ok {
			count = entry.count
		}
		if count >= w.Limit {
			return false, w
		}
	}
	return true, Window{}
}

// Record stores one occurrence of action at the current time, applying the
// lazy period reset first if the prior period has fully elapsed. Callers
// should check Allow first; Record never itself refuses.
func (q *QuotaStore) Record(action string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	for _, w := range q.windows[action] {
		byWindow := q.entries[action]
		if byWindow == nil {
			byWindow = make(map[string]quotaEntry)
			q.entries[action] = byWindow
		}
		entry, ok := byWindow[w.Name]
		if !ok || now.Sub(entry.periodStart) >= w.Duration {
			entry = quotaEntry{periodStart: now, count: 0}
		}
		entry.count++
		byWindow[w.Name] = entry
	}
}

// Remaining returns how many more occurrences of action are permitted
// before the tightest configured window would be exceeded.
func (q *QuotaStore) Remaining(action string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.clock()
	best := -1
	for _, w := range q.windows[action] {
		entry, ok := q.entries[action][w.Name]
		if ok && now.Sub(entry.periodStart) >= w.Duration {
			ok = false
		}
		count := 0
		if ok {
			count = entry.count
		}
		remaining := w.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		if best == -1 || remaining < best {
			best = remaining
		}
	}
	if best == -1 {
		return -1 // unbounded: no windows configured
	}
	return best
}
