package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
)

func newTestEvaluator(now time.Time, opts ...Option) (*Evaluator, *ports.MemoryApprovalQueue) {
	clock := func() time.Time { return now }
	banned := safety.NewBannedPhraseFilter([]string{"guaranteed returns"})
	quota := safety.NewQuotaStore(clock)
	quota.Configure("post_tweet", safety.Window{Name: "daily", Duration: 24 * time.Hour, Limit: 1})
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1, clock)
	ratio := safety.NewProductMentionTracker(24*time.Hour, clock)
	approvals := ports.NewMemoryApprovalQueue()

	e := NewEvaluator(banned, quota, throttle, ratio, approvals, opts...)
	return e, approvals
}

func TestEvaluatorDeniesBannedPhrase(t *testing.T) {
	e, _ := newTestEvaluator(time.Now())
	d := e.Evaluate(context.Background(), MutationRequest{ToolName: "post_tweet", Text: "guaranteed returns on every trade"})
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "banned_phrase", d.Reason)
}

func TestEvaluatorDeniesQuotaExceeded(t *testing.T) {
	now := time.Now()
	e, _ := newTestEvaluator(now)
	req := MutationRequest{ToolName: "post_tweet", Text: "hello"}

	d := e.Evaluate(context.Background(), req)
	require.Equal(t, Allow, d.Outcome)
	e.Commit(context.Background(), req)

	d = e.Evaluate(context.Background(), req)
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "quota_exceeded", d.Reason)
}

func TestEvaluatorDeniesAuthorThrottle(t *testing.T) {
	now := time.Now()
	e, _ := newTestEvaluator(now)
	req := MutationRequest{ToolName: "reply", Author: "alice"}

	d := e.Evaluate(context.Background(), req)
	require.Equal(t, Allow, d.Outcome)
	e.Commit(context.Background(), req)

	d = e.Evaluate(context.Background(), req)
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "author_throttled", d.Reason)
}

func TestEvaluatorDryRunMode(t *testing.T) {
	e, _ := newTestEvaluator(time.Now(), WithDryRun(true))
	d := e.Evaluate(context.Background(), MutationRequest{ToolName: "post_tweet", Text: "hello"})
	assert.Equal(t, DryRun, d.Outcome)
}

func TestEvaluatorRoutesToApprovalQueue(t *testing.T) {
	e, approvals := newTestEvaluator(time.Now(), WithApprovalRequiredTools("delete_tweet"))
	d := e.Evaluate(context.Background(), MutationRequest{ToolName: "delete_tweet"})
	require.Equal(t, ApprovalRequired, d.Outcome)
	require.NotEmpty(t, d.ApprovalID)

	pending, err := approvals.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, d.ApprovalID, pending[0].ID)
}

func TestIdempotencyShieldDedupsWithinWindow(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	shield := NewIdempotencyShield(clock)
	calls := 0

	fn := func(_ context.Context, _ MutationRequest) Decision {
		calls++
		return allow()
	}

	req := MutationRequest{ToolName: "post_tweet", Params: map[string]any{"text": "hi"}}
	shield.Evaluate(context.Background(), req, fn)
	shield.Evaluate(context.Background(), req, fn)
	assert.Equal(t, 1, calls)

	now = now.Add(IdempotencyWindow + time.Second)
	shield.Evaluate(context.Background(), req, fn)
	assert.Equal(t, 2, calls)
}

func TestAllowedMutationSpendsQuotaBeforeDownstreamPostRuns(t *testing.T) {
	// Invariant 2 (spec §8): a mutation the decision allowed leaves its
	// counter consumed even if the caller's subsequent post fails --
	// never the reverse. Evaluate alone (no Commit) must already spend it.
	now := time.Now()
	e, _ := newTestEvaluator(now)
	req := MutationRequest{ToolName: "post_tweet", Text: "hello"}

	d := e.Evaluate(context.Background(), req)
	require.Equal(t, Allow, d.Outcome)

	d = e.Evaluate(context.Background(), req)
	assert.Equal(t, Deny, d.Outcome)
	assert.Equal(t, "quota_exceeded", d.Reason)
}

func TestApprovalRequiredSpendsGlobalCounterNotPerActionCounter(t *testing.T) {
	now := time.Now()
	e, _ := newTestEvaluator(now, WithApprovalRequiredTools("post_tweet"), WithMaxMutationsPerHour(1))

	first := e.Evaluate(context.Background(), MutationRequest{ToolName: "post_tweet", Text: "one"})
	require.Equal(t, ApprovalRequired, first.Outcome)

	// The global mcp-mutation counter was spent by the approval routing
	// above, so a second mutation of a different, unrestricted type must
	// now be rate-limited even though it never touched approval routing.
	second := e.Evaluate(context.Background(), MutationRequest{ToolName: "x_like_tweet"})
	assert.Equal(t, Deny, second.Outcome)
	assert.Equal(t, "rate_limited", second.Reason)

	// The per-action post_tweet counter (daily limit 1) is left unspent.
	assert.Equal(t, 1, e.quota.Remaining("post_tweet"))
}

func TestKeyStableUnderParamOrdering(t *testing.T) {
	req1 := MutationRequest{ToolName: "post_tweet", Params: map[string]any{"a": 1, "b": 2}}
	req2 := MutationRequest{ToolName: "post_tweet", Params: map[string]any{"b": 2, "a": 1}}
	assert.Equal(t, Key(req1), Key(req2))
}
