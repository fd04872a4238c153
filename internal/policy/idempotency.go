package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// IdempotencyWindow is how long a (tool, params) pair is deduplicated for,
// per spec.md's 30-second idempotency shield.
const IdempotencyWindow = 30 * time.Second

// IdempotencyShield deduplicates retried mutation attempts that arrive
// within IdempotencyWindow of one another, keyed by hash(name, params).
// Concurrent callers for the same key collapse onto a single in-flight
// evaluation via singleflight, grounded on
// internal/tools/policy/approval.go's expiring-map bookkeeping
// (generateApprovalID/CleanupExpired) adapted from approval-ID issuance to
// request-level dedup, and on the DOMAIN STACK's golang.org/x/sync wiring.
type IdempotencyShield struct {
	group singleflight.Group

	mu      sync.Mutex
	recent  map[string]recentEntry
	clock   func() time.Time
}

type recentEntry struct {
	decision Decision
	expires  time.Time
}

// NewIdempotencyShield builds a shield. clock defaults to time.Now.
func NewIdempotencyShield(clock func() time.Time) *IdempotencyShield {
	if clock == nil {
		clock = time.Now
	}
	return &IdempotencyShield{
		recent: make(map[string]recentEntry),
		clock:  clock,
	}
}

// Key derives the dedup key for a MutationRequest: its explicit
// IdempotencyKey if set, otherwise a hash of ToolName+Params.
func Key(req MutationRequest) string {
	if req.IdempotencyKey != "" {
		return req.ToolName + ":" + req.IdempotencyKey
	}
	return req.ToolName + ":" + hashParams(req.Params)
}

func hashParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]any, len(params))
	for _, k := range keys {
		ordered[k] = params[k]
	}
	b, _ := json.Marshal(ordered)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Evaluate runs fn at most once per IdempotencyWindow for a given key. A
// second call for the same key within the window does not re-run fn and
// does not replay its decision -- per spec.md §4.3's idempotency shield, it
// short-circuits to a deterministic deny(validation_error), since a repeat
// within the window is treated as a duplicate submission, not a retry that
// deserves the original answer. Concurrent callers for the same key in
// flight collapse onto one evaluation of fn via singleflight.
func (s *IdempotencyShield) Evaluate(ctx context.Context, req MutationRequest, fn func(context.Context, MutationRequest) Decision) Decision {
	key := Key(req)
	s.Sweep()

	s.mu.Lock()
	if entry, ok := s.recent[key]; ok && s.clock().Before(entry.expires) {
		s.mu.Unlock()
		return deny("validation_error", "duplicate request within idempotency window")
	}
	s.mu.Unlock()

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		decision := fn(ctx, req)
		s.mu.Lock()
		s.recent[key] = recentEntry{decision: decision, expires: s.clock().Add(IdempotencyWindow)}
		s.mu.Unlock()
		return decision, nil
	})
	return v.(Decision)
}

// Sweep discards expired dedup entries. Evaluate calls it before every
// lookup, so the map only holds keys evaluated within the last
// IdempotencyWindow.
func (s *IdempotencyShield) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	for k, e := range s.recent {
		if !now.Before(e.expires) {
			delete(s.recent, k)
		}
	}
}
