package safety

import (
	"sync"
	"time"
)

// ProductMentionTracker tracks the fraction of recent posts that mention
// the product/brand, so the policy evaluator can cap self-promotion at a
// configured ratio (spec.md's product-mention ratio check).
type ProductMentionTracker struct {
	mu     sync.Mutex
	clock  func() time.Time
	window time.Duration
	posts  []mentionEvent
}

type mentionEvent struct {
	at        time.Time
	mentioned bool
}

// NewProductMentionTracker builds a tracker over a trailing window.
func NewProductMentionTracker(window time.Duration, clock func() time.Time) *ProductMentionTracker {
	if clock == nil {
		clock = time.Now
	}
	return &ProductMentionTracker{clock: clock, window: window}
}

// Record logs one post, noting whether it mentioned the product.
func (t *ProductMentionTracker) Record(mentioned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.posts = append(t.posts, mentionEvent{at: now, mentioned: mentioned})
	t.pruneLocked(now)
}

// Ratio returns the fraction (0..1) of posts in the trailing window that
// mentioned the product. Returns 0 when there is no history yet.
func (t *ProductMentionTracker) Ratio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.pruneLocked(now)
	if len(t.posts) == 0 {
		return 0
	}
	mentioned := 0
	for _, p := range t.posts {
		if p.mentioned {
			mentioned++
		}
	}
	return float64(mentioned) / float64(len(t.posts))
}

// WouldExceed reports whether recording one more mentioning post would push
// the ratio above maxRatio.
func (t *ProductMentionTracker) WouldExceed(maxRatio float64) bool {
	t.mu.Lock()
	now := t.clock()
	t.pruneLocked(now)
	total := len(t.posts) + 1
	mentioned := 1
	for _, p := range t.posts {
		if p.mentioned {
			mentioned++
		}
	}
	t.mu.Unlock()
	return float64(mentioned)/float64(total) > maxRatio
}

func (t *ProductMentionTracker) pruneLocked(now time.Time) {
	if t.window <= 0 {
		return
	}
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.posts) && !t.posts[i].at.After(cutoff) {
		i++
	}
	t.posts = t.posts[i:]
}
