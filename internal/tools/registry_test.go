package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// stubPoster satisfies XPoster with canned responses.
type stubPoster struct{}

func (stubPoster) PostTweet(ctx context.Context, text string) (xapi.PostedTweet, error) {
	return xapi.PostedTweet{ID: "t1"}, nil
}
func (stubPoster) Reply(ctx context.Context, text, inReplyToID string) (xapi.PostedTweet, error) {
	return xapi.PostedTweet{ID: "t2"}, nil
}
func (stubPoster) LikeTweet(ctx context.Context, userID, tweetID string) (bool, error) {
	return true, nil
}
func (stubPoster) FollowUser(ctx context.Context, userID, targetUserID string) (bool, error) {
	return true, nil
}
func (stubPoster) DeleteTweet(ctx context.Context, tweetID string) (bool, error) { return true, nil }
func (stubPoster) Search(ctx context.Context, query, sinceID, nextToken string) (xapi.SearchResult, error) {
	return xapi.SearchResult{}, nil
}
func (stubPoster) GetTweet(ctx context.Context, tweetID string) (xapi.Tweet, error) {
	return xapi.Tweet{ID: tweetID}, nil
}

// stubDrafter satisfies ReplyDrafter with a canned reply.
type stubDrafter struct{}

func (stubDrafter) DraftReply(ctx context.Context, inReplyToText string) (string, error) {
	return "thanks for the mention!", nil
}

func newTestRegistryEvaluator(opts ...policy.Option) *policy.Evaluator {
	banned := safety.NewBannedPhraseFilter(nil)
	quota := safety.NewQuotaStore(nil)
	throttle := safety.NewAuthorThrottle(0, 0, nil)
	ratio := safety.NewProductMentionTracker(0, nil)
	approvals := ports.NewMemoryApprovalQueue()
	return policy.NewEvaluator(banned, quota, throttle, ratio, approvals, opts...)
}

func TestRegistryExecuteUnknownToolReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	env := r.Execute(context.Background(), "does_not_exist", nil)
	require.False(t, env.Success)
	assert.Equal(t, ErrNotFound, env.Error.Code)
}

func TestPostTweetToolRejectsOverlongText(t *testing.T) {
	evaluator := newTestRegistryEvaluator()
	tool := NewPostTweetTool(stubPoster{}, evaluator, EnvelopeContext{})

	long := make([]byte, maxTweetChars+1)
	for i := range long {
		long[i] = 'a'
	}
	env := tool.Execute(context.Background(), map[string]any{"text": string(long)})
	require.False(t, env.Success)
	assert.Equal(t, ErrTweetTooLong, env.Error.Code)
}

func TestPostTweetToolRequiresText(t *testing.T) {
	evaluator := newTestRegistryEvaluator()
	tool := NewPostTweetTool(stubPoster{}, evaluator, EnvelopeContext{})
	env := tool.Execute(context.Background(), map[string]any{})
	require.False(t, env.Success)
	assert.Equal(t, ErrInvalidInput, env.Error.Code)
}

func TestPostTweetToolSucceeds(t *testing.T) {
	evaluator := newTestRegistryEvaluator()
	tool := NewPostTweetTool(stubPoster{}, evaluator, EnvelopeContext{WorkflowMode: "autopilot"})
	env := tool.Execute(context.Background(), map[string]any{"text": "hello world"})
	require.True(t, env.Success)
	assert.Equal(t, "1.0", env.Meta.ToolVersion)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	evaluator := newTestRegistryEvaluator()
	r := NewRegistry()
	tool := NewPostTweetTool(stubPoster{}, evaluator, EnvelopeContext{})
	r.Register(tool)

	got, ok := r.Get("x_post_tweet")
	require.True(t, ok)
	assert.Equal(t, "x_post_tweet", got.Name())
	assert.Len(t, r.All(), 1)
}

func TestManifestEveryEntryUsesClosedErrorVocabulary(t *testing.T) {
	m := GenerateManifest()
	require.NotEmpty(t, m.Tools)
	for _, entry := range m.Tools {
		for _, code := range entry.PossibleErrorCodes {
			assert.True(t, AllErrorCodes[code], "tool %s references unknown error code %s", entry.Name, code)
		}
	}
}

func TestGenerateProfileManifestFiltersByProfile(t *testing.T) {
	full := GenerateManifest()
	readonly := GenerateProfileManifest(ProfileReadonly)
	assert.LessOrEqual(t, len(readonly.Tools), len(full.Tools))
	for _, entry := range readonly.Tools {
		assert.True(t, entry.InProfile(ProfileReadonly))
	}
}

func TestApproveItemTwiceReturnsNotFoundSecondTime(t *testing.T) {
	evaluator := newTestRegistryEvaluator(policy.WithApprovalRequiredTools("x_delete_tweet"))
	deleteTool := NewDeleteTweetTool(stubPoster{}, evaluator, EnvelopeContext{})
	queued := deleteTool.Execute(context.Background(), map[string]any{"tweet_id": "t1"})
	require.True(t, queued.Success)
	id, _ := queued.Data.(map[string]any)["approval_queue_id"].(string)
	require.NotEmpty(t, id)

	approve := NewApproveItemTool(evaluator, EnvelopeContext{})
	first := approve.Execute(context.Background(), map[string]any{"id": id})
	require.True(t, first.Success)

	second := approve.Execute(context.Background(), map[string]any{"id": id})
	require.False(t, second.Success)
	assert.Equal(t, ErrNotFound, second.Error.Code)
}

func TestProposeAndQueueRepliesAlwaysRoutesToApprovalQueue(t *testing.T) {
	evaluator := newTestRegistryEvaluator()
	tool := NewProposeAndQueueRepliesTool(stubDrafter{}, evaluator, nil, EnvelopeContext{})

	env := tool.Execute(context.Background(), map[string]any{
		"in_reply_to_id": "t1", "author_id": "a1", "text": "great post",
	})
	require.True(t, env.Success)
	data, _ := env.Data.(map[string]any)
	assert.Equal(t, true, data["routed_to_approval"])
	assert.NotEmpty(t, data["approval_queue_id"])
}

func TestProposeAndQueueRepliesDedupsIdenticalCallsWithValidationError(t *testing.T) {
	now := time.Now()
	shield := policy.NewIdempotencyShield(func() time.Time { return now })
	evaluator := newTestRegistryEvaluator(policy.WithIdempotencyShield(shield))
	tool := NewProposeAndQueueRepliesTool(stubDrafter{}, evaluator, nil, EnvelopeContext{})

	params := map[string]any{"in_reply_to_id": "t1", "author_id": "a1", "text": "great post"}
	first := tool.Execute(context.Background(), params)
	require.True(t, first.Success)

	// Scenario 6 (spec.md): an identical propose_and_queue_replies call
	// repeated inside the idempotency window must be refused as a
	// duplicate, not silently drafted and queued a second time.
	second := tool.Execute(context.Background(), params)
	require.False(t, second.Success)
	assert.Equal(t, ErrValidationError, second.Error.Code)
}

func TestPostTweetToolSharesQuotaActionWithLoops(t *testing.T) {
	quota := safety.NewQuotaStore(nil)
	quota.Configure("post_tweet", safety.Window{Name: "daily", Duration: 24 * time.Hour, Limit: 1})
	evaluator := policy.NewEvaluator(
		safety.NewBannedPhraseFilter(nil), quota,
		safety.NewAuthorThrottle(0, 0, nil), safety.NewProductMentionTracker(0, nil),
		ports.NewMemoryApprovalQueue(),
	)
	tool := NewPostTweetTool(stubPoster{}, evaluator, EnvelopeContext{})

	first := tool.Execute(context.Background(), map[string]any{"text": "one"})
	require.True(t, first.Success)

	// The x_post_tweet tool and the content loop both spend the same
	// "post_tweet" quota counter, so a loop-side check after a tool-side
	// post must already see it exhausted.
	d := evaluator.Evaluate(context.Background(), policy.MutationRequest{ToolName: "post_tweet", Action: "post_tweet", Text: "two"})
	assert.Equal(t, policy.Deny, d.Outcome)
	assert.Equal(t, "quota_exceeded", d.Reason)
}
