package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQuotaStoreCountSince(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryQuotaStore()
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, QuotaRecord{Action: "post", Author: "bot", Timestamp: now}))
	require.NoError(t, store.Record(ctx, QuotaRecord{Action: "post", Author: "bot", Timestamp: now.Add(time.Minute)}))
	require.NoError(t, store.Record(ctx, QuotaRecord{Action: "reply", Author: "bot", Timestamp: now}))

	count, err := store.CountSince(ctx, "post", "bot", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountSince(ctx, "post", "bot", now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryQuotaStorePrune(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryQuotaStore()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Record(ctx, QuotaRecord{Action: "post", Timestamp: old}))
	require.NoError(t, store.Record(ctx, QuotaRecord{Action: "post", Timestamp: recent}))

	require.NoError(t, store.Prune(ctx, old.Add(time.Hour)))
	count, err := store.CountSince(ctx, "post", "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryApprovalQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryApprovalQueue()

	require.NoError(t, q.Enqueue(ctx, ApprovalRequest{ID: "a1", ToolName: "post_tweet"}))
	pending, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, q.Resolve(ctx, "a1", ApprovalApproved, "operator"))
	req, ok, err := q.Get(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ApprovalApproved, req.Status)
	assert.Equal(t, "operator", req.DecidedBy)

	pending, err = q.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMemoryApprovalQueueExpireOlderThan(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryApprovalQueue()
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, q.Enqueue(ctx, ApprovalRequest{ID: "a1", Status: ApprovalPending, ExpiresAt: past}))
	n, err := q.ExpireOlderThan(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	req, _, _ := q.Get(ctx, "a1")
	assert.Equal(t, ApprovalExpired, req.Status)
}

func TestMemoryDiscoveryStoreListUnengagedSortsByScore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDiscoveryStore()
	require.NoError(t, store.Save(ctx, DiscoveredTweet{ID: "1", Score: 40}))
	require.NoError(t, store.Save(ctx, DiscoveredTweet{ID: "2", Score: 90}))
	require.NoError(t, store.Save(ctx, DiscoveredTweet{ID: "3", Score: 10, Engaged: true}))

	out, err := store.ListUnengaged(ctx, 20, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[0].ID)
	assert.Equal(t, "1", out[1].ID)
}
