package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// XPoster is the subset of xapi.Client's write surface the mutation tools
// in this file depend on. A narrow interface (rather than *xapi.Client
// directly) keeps these tools testable with a stub, the same seam
// internal/loops uses for ContentPoster/ThreadPoster.
type XPoster interface {
	PostTweet(ctx context.Context, text string) (xapi.PostedTweet, error)
	Reply(ctx context.Context, text, inReplyToID string) (xapi.PostedTweet, error)
	LikeTweet(ctx context.Context, userID, tweetID string) (bool, error)
	FollowUser(ctx context.Context, userID, targetUserID string) (bool, error)
	DeleteTweet(ctx context.Context, tweetID string) (bool, error)
	Search(ctx context.Context, query, sinceID, nextToken string) (xapi.SearchResult, error)
	GetTweet(ctx context.Context, tweetID string) (xapi.Tweet, error)
}

// xAPIErrorCode maps an xapi.Error's Kind to the tool-surface closed error
// vocabulary, grounded on §4.7's code list and §7's error-kind mapping.
func xAPIErrorCode(err error) (ErrorCode, bool, time.Duration) {
	xe, ok := err.(*xapi.Error)
	if !ok {
		return ErrXAPIError, false, 0
	}
	switch xe.Kind {
	case xapi.KindRateLimited:
		return ErrXRateLimited, true, time.Duration(xe.RetryAfter) * time.Second
	case xapi.KindAuthExpired:
		return ErrXAuthExpired, false, 0
	case xapi.KindScopeInsufficient, xapi.KindForbidden:
		return ErrXForbidden, false, 0
	case xapi.KindNetwork:
		return ErrXAPIError, true, 0
	default:
		return ErrXAPIError, xe.Retryable(), 0
	}
}

// policyErrorCode maps a denied policy.Decision's reason to the closed
// error vocabulary, grounded on §4.3's decision reasons and §4.7's
// policy_denied_* codes.
func policyErrorCode(reason string) ErrorCode {
	switch reason {
	case "quota_exceeded", "rate_limited":
		return ErrPolicyDeniedRateLimit
	case "banned_phrase", "mention_ratio":
		return ErrPolicyDeniedHardRule
	case "author_throttled":
		return ErrPolicyDeniedUserRule
	case "validation_error":
		// The idempotency shield's duplicate-request short-circuit
		// (internal/policy/idempotency.go) denies with this reason; it's a
		// malformed/repeat request, not a policy rule, so it gets its own
		// code (spec.md's idempotency-duplicate scenario) rather than
		// falling into policy_denied_blocked.
		return ErrValidationError
	default:
		return ErrPolicyDeniedBlocked
	}
}

const maxTweetChars = 280

// policyDenyEnvelope builds the Fail envelope for a policy.Deny decision,
// carrying its retry-after hint (if any) through to the closed error
// vocabulary's retryable/retry_after_ms fields.
func policyDenyEnvelope(env EnvelopeContext, decision policy.Decision, elapsed time.Duration) Envelope {
	code := policyErrorCode(decision.Reason)
	retryable := code == ErrPolicyDeniedRateLimit
	return env.Fail(code, decision.Detail, retryable, decision.RetryAfter, elapsed)
}

// PostTweetTool posts an original tweet, gated by the shared policy
// evaluator exactly as the content loop gates scheduled posts.
type PostTweetTool struct {
	poster    XPoster
	evaluator *policy.Evaluator
	env       EnvelopeContext
}

// NewPostTweetTool builds the x_post_tweet tool.
func NewPostTweetTool(poster XPoster, evaluator *policy.Evaluator, env EnvelopeContext) *PostTweetTool {
	return &PostTweetTool{poster: poster, evaluator: evaluator, env: env}
}

func (t *PostTweetTool) Name() string        { return "x_post_tweet" }
func (t *PostTweetTool) Description() string { return "Post an original tweet." }
func (t *PostTweetTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}
}
func (t *PostTweetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *PostTweetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	text, _ := params["text"].(string)
	if text == "" {
		return t.env.Fail(ErrInvalidInput, "text is required", false, 0, time.Since(start))
	}
	if len(text) > maxTweetChars {
		return t.env.Fail(ErrTweetTooLong, fmt.Sprintf("text exceeds %d characters", maxTweetChars), false, 0, time.Since(start))
	}

	req := policy.MutationRequest{
		ToolName: t.Name(),
		Action:   "post_tweet",
		Text:     text,
		Params:   map[string]any{"text": text},
	}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{
			"routed_to_approval": true,
			"approval_queue_id":  decision.ApprovalID,
		}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "text": text}, time.Since(start))
	}

	posted, err := t.poster.PostTweet(ctx, text)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(map[string]any{"id": posted.ID, "text": posted.Text}, time.Since(start))
}

// ReplyToTweetTool replies to an existing tweet, author-throttle-gated.
type ReplyToTweetTool struct {
	poster          XPoster
	evaluator       *policy.Evaluator
	productKeywords []string
	env             EnvelopeContext
}

// NewReplyToTweetTool builds the x_reply_to_tweet tool.
func NewReplyToTweetTool(poster XPoster, evaluator *policy.Evaluator, productKeywords []string, env EnvelopeContext) *ReplyToTweetTool {
	return &ReplyToTweetTool{poster: poster, evaluator: evaluator, productKeywords: productKeywords, env: env}
}

func (t *ReplyToTweetTool) Name() string        { return "x_reply_to_tweet" }
func (t *ReplyToTweetTool) Description() string { return "Reply to an existing tweet." }
func (t *ReplyToTweetTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"in_reply_to_id": map[string]any{"type": "string"},
			"author_id":      map[string]any{"type": "string"},
			"text":           map[string]any{"type": "string"},
		},
		"required": []string{"in_reply_to_id", "text"},
	}
}
func (t *ReplyToTweetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *ReplyToTweetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	inReplyTo, _ := params["in_reply_to_id"].(string)
	author, _ := params["author_id"].(string)
	text, _ := params["text"].(string)
	if inReplyTo == "" || text == "" {
		return t.env.Fail(ErrInvalidInput, "in_reply_to_id and text are required", false, 0, time.Since(start))
	}
	if len(text) > maxTweetChars {
		return t.env.Fail(ErrTweetTooLong, fmt.Sprintf("text exceeds %d characters", maxTweetChars), false, 0, time.Since(start))
	}

	req := policy.MutationRequest{
		ToolName:        t.Name(),
		Action:          "reply",
		Text:            text,
		Author:          author,
		MentionsProduct: safety.MentionsKeyword(text, t.productKeywords),
		Params:          map[string]any{"text": text, "in_reply_to_id": inReplyTo, "author_id": author},
	}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{
			"routed_to_approval": true,
			"approval_queue_id":  decision.ApprovalID,
		}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "text": text}, time.Since(start))
	}

	posted, err := t.poster.Reply(ctx, text, inReplyTo)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(map[string]any{"id": posted.ID, "text": posted.Text}, time.Since(start))
}

// LikeTweetTool likes a tweet on behalf of the authenticated user.
type LikeTweetTool struct {
	poster    XPoster
	evaluator *policy.Evaluator
	userID    string
	env       EnvelopeContext
}

// NewLikeTweetTool builds the x_like_tweet tool.
func NewLikeTweetTool(poster XPoster, evaluator *policy.Evaluator, userID string, env EnvelopeContext) *LikeTweetTool {
	return &LikeTweetTool{poster: poster, evaluator: evaluator, userID: userID, env: env}
}

func (t *LikeTweetTool) Name() string        { return "x_like_tweet" }
func (t *LikeTweetTool) Description() string { return "Like a tweet." }
func (t *LikeTweetTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"tweet_id": map[string]any{"type": "string"}},
		"required":   []string{"tweet_id"},
	}
}
func (t *LikeTweetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *LikeTweetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	tweetID, _ := params["tweet_id"].(string)
	if tweetID == "" {
		return t.env.Fail(ErrInvalidInput, "tweet_id is required", false, 0, time.Since(start))
	}

	req := policy.MutationRequest{ToolName: t.Name()}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{"routed_to_approval": true, "approval_queue_id": decision.ApprovalID}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "tweet_id": tweetID}, time.Since(start))
	}

	ok, err := t.poster.LikeTweet(ctx, t.userID, tweetID)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(map[string]any{"liked": ok}, time.Since(start))
}

// DeleteTweetTool deletes a previously posted tweet.
type DeleteTweetTool struct {
	poster    XPoster
	evaluator *policy.Evaluator
	env       EnvelopeContext
}

// NewDeleteTweetTool builds the x_delete_tweet tool.
func NewDeleteTweetTool(poster XPoster, evaluator *policy.Evaluator, env EnvelopeContext) *DeleteTweetTool {
	return &DeleteTweetTool{poster: poster, evaluator: evaluator, env: env}
}

func (t *DeleteTweetTool) Name() string        { return "x_delete_tweet" }
func (t *DeleteTweetTool) Description() string { return "Delete a tweet by id." }
func (t *DeleteTweetTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"tweet_id": map[string]any{"type": "string"}},
		"required":   []string{"tweet_id"},
	}
}
func (t *DeleteTweetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *DeleteTweetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	tweetID, _ := params["tweet_id"].(string)
	if tweetID == "" {
		return t.env.Fail(ErrInvalidInput, "tweet_id is required", false, 0, time.Since(start))
	}

	req := policy.MutationRequest{ToolName: t.Name()}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{"routed_to_approval": true, "approval_queue_id": decision.ApprovalID}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "tweet_id": tweetID}, time.Since(start))
	}

	ok, err := t.poster.DeleteTweet(ctx, tweetID)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(map[string]any{"deleted": ok}, time.Since(start))
}

// FollowUserTool follows a user on behalf of the authenticated account.
type FollowUserTool struct {
	poster    XPoster
	evaluator *policy.Evaluator
	userID    string
	env       EnvelopeContext
}

// NewFollowUserTool builds the x_follow_user tool.
func NewFollowUserTool(poster XPoster, evaluator *policy.Evaluator, userID string, env EnvelopeContext) *FollowUserTool {
	return &FollowUserTool{poster: poster, evaluator: evaluator, userID: userID, env: env}
}

func (t *FollowUserTool) Name() string        { return "x_follow_user" }
func (t *FollowUserTool) Description() string { return "Follow a user." }
func (t *FollowUserTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"target_user_id": map[string]any{"type": "string"}},
		"required":   []string{"target_user_id"},
	}
}
func (t *FollowUserTool) Entry() Entry { return entryByName(t.Name()) }

func (t *FollowUserTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	targetID, _ := params["target_user_id"].(string)
	if targetID == "" {
		return t.env.Fail(ErrInvalidInput, "target_user_id is required", false, 0, time.Since(start))
	}

	req := policy.MutationRequest{ToolName: t.Name(), Author: targetID}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{"routed_to_approval": true, "approval_queue_id": decision.ApprovalID}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "target_user_id": targetID}, time.Since(start))
	}

	ok, err := t.poster.FollowUser(ctx, t.userID, targetID)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(map[string]any{"followed": ok}, time.Since(start))
}

// SearchTweetsTool performs a read-only tweet search, exposed in every
// profile per its manifest entry.
type SearchTweetsTool struct {
	client XPoster
	env    EnvelopeContext
}

// NewSearchTweetsTool builds the x_search_tweets tool.
func NewSearchTweetsTool(client XPoster, env EnvelopeContext) *SearchTweetsTool {
	return &SearchTweetsTool{client: client, env: env}
}

func (t *SearchTweetsTool) Name() string        { return "x_search_tweets" }
func (t *SearchTweetsTool) Description() string { return "Search recent tweets matching a query." }
func (t *SearchTweetsTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":      map[string]any{"type": "string"},
			"since_id":   map[string]any{"type": "string"},
			"next_token": map[string]any{"type": "string"},
		},
		"required": []string{"query"},
	}
}
func (t *SearchTweetsTool) Entry() Entry { return entryByName(t.Name()) }

func (t *SearchTweetsTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	query, _ := params["query"].(string)
	if query == "" {
		return t.env.Fail(ErrInvalidInput, "query is required", false, 0, time.Since(start))
	}
	sinceID, _ := params["since_id"].(string)
	nextToken, _ := params["next_token"].(string)

	res, err := t.client.Search(ctx, query, sinceID, nextToken)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	return t.env.Success(map[string]any{
		"tweets":       res.Tweets,
		"next_token":   res.NextToken,
		"result_count": res.ResultCount,
	}, time.Since(start))
}

// GetTweetByIDTool fetches a single tweet by id, read-only.
type GetTweetByIDTool struct {
	client XPoster
	env    EnvelopeContext
}

// NewGetTweetByIDTool builds the get_tweet_by_id tool.
func NewGetTweetByIDTool(client XPoster, env EnvelopeContext) *GetTweetByIDTool {
	return &GetTweetByIDTool{client: client, env: env}
}

func (t *GetTweetByIDTool) Name() string        { return "get_tweet_by_id" }
func (t *GetTweetByIDTool) Description() string { return "Fetch a tweet by id." }
func (t *GetTweetByIDTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"tweet_id": map[string]any{"type": "string"}},
		"required":   []string{"tweet_id"},
	}
}
func (t *GetTweetByIDTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GetTweetByIDTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	tweetID, _ := params["tweet_id"].(string)
	if tweetID == "" {
		return t.env.Fail(ErrInvalidInput, "tweet_id is required", false, 0, time.Since(start))
	}
	tw, err := t.client.GetTweet(ctx, tweetID)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	return t.env.Success(tw, time.Since(start))
}
