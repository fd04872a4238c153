package ports

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQuotaStore is an in-memory QuotaPort, grounded on
// internal/cron/execution_store.go's MemoryExecutionStore: a mutex-guarded
// slice of records in insertion order.
type MemoryQuotaStore struct {
	mu      sync.Mutex
	records []QuotaRecord
}

func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{}
}

func (m *MemoryQuotaStore) Record(_ context.Context, rec QuotaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryQuotaStore) CountSince(_ context.Context, action, author string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.records {
		if r.Action != action {
			continue
		}
		if author != "" && r.Author != author {
			continue
		}
		if r.Timestamp.Before(since) {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MemoryQuotaStore) Prune(_ context.Context, olderThan time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Timestamp.After(olderThan) {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

// MemoryAuditStore is an in-memory AuditPort.
type MemoryAuditStore struct {
	mu      sync.Mutex
	records []MutationAuditRecord
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (m *MemoryAuditStore) Append(_ context.Context, rec MutationAuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryAuditStore) List(_ context.Context, since time.Time, limit int) ([]MutationAuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MutationAuditRecord, 0, len(m.records))
	for _, r := range m.records {
		if r.Timestamp.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// MemoryApprovalQueue is an in-memory ApprovalQueuePort.
type MemoryApprovalQueue struct {
	mu      sync.Mutex
	queue   map[string]ApprovalRequest
	order   []string
}

func NewMemoryApprovalQueue() *MemoryApprovalQueue {
	return &MemoryApprovalQueue{queue: make(map[string]ApprovalRequest)}
}

func (m *MemoryApprovalQueue) Enqueue(_ context.Context, req ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = ApprovalPending
	}
	if _, exists := m.queue[req.ID]; !exists {
		m.order = append(m.order, req.ID)
	}
	m.queue[req.ID] = req
	return nil
}

func (m *MemoryApprovalQueue) Get(_ context.Context, id string) (ApprovalRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.queue[id]
	return req, ok, nil
}

func (m *MemoryApprovalQueue) Resolve(_ context.Context, id string, status ApprovalStatus, decidedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.queue[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.DecidedBy = decidedBy
	req.DecidedAt = time.Now()
	m.queue[id] = req
	return nil
}

func (m *MemoryApprovalQueue) ListPending(_ context.Context) ([]ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ApprovalRequest, 0)
	for _, id := range m.order {
		req, ok := m.queue[id]
		if ok && req.Status == ApprovalPending {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *MemoryApprovalQueue) ExpireOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, req := range m.queue {
		if req.Status == ApprovalPending && req.ExpiresAt.Before(cutoff) {
			req.Status = ApprovalExpired
			m.queue[id] = req
			n++
		}
	}
	return n, nil
}

// MemoryTelemetrySink is an in-memory TelemetryPort, useful for tests that
// want to assert on emitted events without standing up Prometheus.
type MemoryTelemetrySink struct {
	mu     sync.Mutex
	Events []TelemetryEvent
}

func NewMemoryTelemetrySink() *MemoryTelemetrySink {
	return &MemoryTelemetrySink{}
}

func (m *MemoryTelemetrySink) Emit(_ context.Context, ev TelemetryEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

// MemoryDiscoveryStore is an in-memory DiscoveryPort.
type MemoryDiscoveryStore struct {
	mu    sync.Mutex
	byID  map[string]DiscoveredTweet
}

func NewMemoryDiscoveryStore() *MemoryDiscoveryStore {
	return &MemoryDiscoveryStore{byID: make(map[string]DiscoveredTweet)}
}

func (m *MemoryDiscoveryStore) Save(_ context.Context, tw DiscoveredTweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[tw.ID] = tw
	return nil
}

func (m *MemoryDiscoveryStore) Get(_ context.Context, id string) (DiscoveredTweet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tw, ok := m.byID[id]
	return tw, ok, nil
}

func (m *MemoryDiscoveryStore) ListUnengaged(_ context.Context, minScore float64, limit int) ([]DiscoveredTweet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DiscoveredTweet, 0)
	for _, tw := range m.byID {
		if tw.Engaged || tw.Score < minScore {
			continue
		}
		out = append(out, tw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDiscoveryStore) MarkEngaged(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tw, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	tw.Engaged = true
	m.byID[id] = tw
	return nil
}

// MemoryScheduledPostStore is an in-memory ScheduledPostPort.
type MemoryScheduledPostStore struct {
	mu    sync.Mutex
	posts map[string]ScheduledPost
}

func NewMemoryScheduledPostStore() *MemoryScheduledPostStore {
	return &MemoryScheduledPostStore{posts: make(map[string]ScheduledPost)}
}

func (m *MemoryScheduledPostStore) Enqueue(_ context.Context, post ScheduledPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	m.posts[post.ID] = post
	return nil
}

func (m *MemoryScheduledPostStore) DueBefore(_ context.Context, cutoff time.Time) ([]ScheduledPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ScheduledPost, 0)
	for _, p := range m.posts {
		if !p.Posted && !p.RunAt.After(cutoff) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}

func (m *MemoryScheduledPostStore) MarkPosted(_ context.Context, id, tweetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Posted = true
	p.PostedTweetID = tweetID
	m.posts[id] = p
	return nil
}
