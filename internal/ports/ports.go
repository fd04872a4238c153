// Package ports defines the persistence seams the rest of tuitbot-core
// depends on (§4.2): quota counters, mutation audit, approval queue,
// telemetry sink, and discovered-tweet storage. Each interface has an
// in-memory reference implementation in memory.go, grounded on
// internal/cron/execution_store.go's MemoryExecutionStore pattern.
package ports

import (
	"context"
	"time"
)

// QuotaRecord is one observation against a rolling-window quota counter.
type QuotaRecord struct {
	Action    string
	Author    string
	Timestamp time.Time
}

// QuotaPort persists quota observations so counters survive process
// restarts and can be shared across instances.
type QuotaPort interface {
	// Record stores a single quota observation.
	Record(ctx context.Context, rec QuotaRecord) error
	// CountSince returns the number of observations for action (and,
	// if author is non-empty, scoped to that author) since the given
	// time.
	CountSince(ctx context.Context, action, author string, since time.Time) (int, error)
	// Prune discards observations older than the given time.
	Prune(ctx context.Context, olderThan time.Time) error
}

// MutationAuditRecord captures one attempted or completed mutation for
// after-the-fact review, per spec.md's Mutation audit record data model.
type MutationAuditRecord struct {
	ID         string
	ToolName   string
	Params     map[string]any
	Decision   string // allow | deny | approval_required | dry_run
	Reason     string
	ResultOK   bool
	ResultInfo string
	Timestamp  time.Time
}

// AuditPort persists MutationAuditRecords.
type AuditPort interface {
	Append(ctx context.Context, rec MutationAuditRecord) error
	List(ctx context.Context, since time.Time, limit int) ([]MutationAuditRecord, error)
}

// ApprovalStatus mirrors internal/tools/policy/approval.go's
// ApprovalStatus vocabulary.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalDenied   ApprovalStatus = "denied"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalRequest is a mutation awaiting human sign-off.
type ApprovalRequest struct {
	ID        string
	ToolName  string
	Params    map[string]any
	Status    ApprovalStatus
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time
	DecidedAt time.Time
	DecidedBy string
}

// ApprovalQueuePort stores pending approvals and their resolutions.
type ApprovalQueuePort interface {
	Enqueue(ctx context.Context, req ApprovalRequest) error
	Get(ctx context.Context, id string) (ApprovalRequest, bool, error)
	Resolve(ctx context.Context, id string, status ApprovalStatus, decidedBy string) error
	ListPending(ctx context.Context) ([]ApprovalRequest, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TelemetryEvent is a single observability event emitted by a loop or tool
// call, the shape internal/telemetry.Metrics records into Prometheus and
// that AuditPort-backed review tooling can also consume.
type TelemetryEvent struct {
	Name      string
	Outcome   string
	ElapsedMS int64
	ErrorCode string
	Timestamp time.Time
}

// TelemetryPort persists raw telemetry events, independent of whatever
// metrics backend (Prometheus, etc.) is also wired up.
type TelemetryPort interface {
	Emit(ctx context.Context, ev TelemetryEvent) error
}

// DiscoveredTweet is a candidate surfaced by the discovery loop, per
// spec.md's Tweet candidate data model.
type DiscoveredTweet struct {
	ID          string
	AuthorID    string
	Text        string
	Score       float64
	Signals     map[string]float64
	DiscoveredAt time.Time
	Engaged     bool
}

// DiscoveryPort persists discovered tweet candidates and their scores.
type DiscoveryPort interface {
	Save(ctx context.Context, tw DiscoveredTweet) error
	Get(ctx context.Context, id string) (DiscoveredTweet, bool, error)
	ListUnengaged(ctx context.Context, minScore float64, limit int) ([]DiscoveredTweet, error)
	MarkEngaged(ctx context.Context, id string) error
}

// ScheduledPost is a manually-queued post awaiting its scheduled time, per
// spec.md's Scheduled post data model.
type ScheduledPost struct {
	ID        string
	Text      string
	RunAt     time.Time
	Posted    bool
	PostedTweetID string
}

// ScheduledPostPort persists manually scheduled posts.
type ScheduledPostPort interface {
	Enqueue(ctx context.Context, post ScheduledPost) error
	DueBefore(ctx context.Context, cutoff time.Time) ([]ScheduledPost, error)
	MarkPosted(ctx context.Context, id, tweetID string) error
}
