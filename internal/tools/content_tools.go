package tools

import (
	"context"
	"strings"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/loops"
	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/safety"
)

// PostThreadTool generates and posts a multi-tweet reply chain on demand,
// the tool-surface counterpart of internal/loops.ThreadLoop's scheduled
// run. Reuses ThreadLoop.RunOnceWithTopic directly so the same
// generate-with-validation / reply-chain / partial-failure logic the
// scheduled loop uses backs the on-demand tool call, including its own
// per-tweet policy gating.
type PostThreadTool struct {
	loop *loops.ThreadLoop
	env  EnvelopeContext
}

func NewPostThreadTool(loop *loops.ThreadLoop, env EnvelopeContext) *PostThreadTool {
	return &PostThreadTool{loop: loop, env: env}
}

func (t *PostThreadTool) Name() string        { return "x_post_thread" }
func (t *PostThreadTool) Description() string { return "Generate and post a multi-tweet thread." }
func (t *PostThreadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"topic"},
	}
}
func (t *PostThreadTool) Entry() Entry { return entryByName(t.Name()) }

func (t *PostThreadTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	topic, _ := params["topic"].(string)
	if topic == "" {
		return t.env.Fail(ErrInvalidInput, "topic is required", false, 0, time.Since(start))
	}
	count := 0
	if c, ok := params["count"].(float64); ok && c > 0 {
		count = int(c)
	}

	result := t.loop.RunOnceWithTopic(ctx, topic, count)
	switch result.Outcome {
	case loops.OutcomePosted:
		return t.env.Success(map[string]any{"detail": result.Detail}, time.Since(start))
	case loops.OutcomePartial:
		return Envelope{
			Success: false,
			Error: &ErrorDetail{
				Code:      ErrThreadPartialFailure,
				Message:   result.Detail,
				Retryable: false,
			},
			Meta: t.env.meta(time.Since(start)),
		}
	case loops.OutcomeNoCandidates:
		return t.env.Fail(ErrInvalidInput, result.Detail, false, 0, time.Since(start))
	default:
		msg := result.Detail
		if strings.HasPrefix(msg, "denied: ") {
			return t.env.Fail(ErrPolicyDeniedBlocked, msg, false, 0, time.Since(start))
		}
		return t.env.Fail(ErrTopicError, msg, false, 0, time.Since(start))
	}
}

// GenerateTweetTool drafts an original tweet body without posting it,
// backing the generate_tweet tool (§4.7).
type GenerateTweetTool struct {
	generator loops.TweetGenerator
	env       EnvelopeContext
}

func NewGenerateTweetTool(generator loops.TweetGenerator, env EnvelopeContext) *GenerateTweetTool {
	return &GenerateTweetTool{generator: generator, env: env}
}

func (t *GenerateTweetTool) Name() string        { return "generate_tweet" }
func (t *GenerateTweetTool) Description() string { return "Draft an original tweet for a topic without posting it." }
func (t *GenerateTweetTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"topic": map[string]any{"type": "string"}},
		"required":   []string{"topic"},
	}
}
func (t *GenerateTweetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GenerateTweetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	topic, _ := params["topic"].(string)
	if topic == "" {
		return t.env.Fail(ErrInvalidInput, "topic is required", false, 0, time.Since(start))
	}
	text, err := t.generator.GenerateTweet(ctx, topic)
	if err != nil {
		return t.env.Fail(ErrLLMError, err.Error(), true, 0, time.Since(start))
	}
	if len(text) > maxTweetChars {
		text = loops.TruncateAtWordBoundary(text, maxTweetChars)
	}
	return t.env.Success(map[string]any{"text": text}, time.Since(start))
}

// GenerateReplyTool drafts a reply to an arbitrary tweet body without
// posting it, backing the generate_reply tool.
type GenerateReplyTool struct {
	generator ReplyDrafter
	env       EnvelopeContext
}

// ReplyDrafter is the narrow LLM seam generate_reply depends on: draft
// reply text for an arbitrary (not necessarily mention-sourced) tweet body.
type ReplyDrafter interface {
	DraftReply(ctx context.Context, inReplyToText string) (string, error)
}

func NewGenerateReplyTool(generator ReplyDrafter, env EnvelopeContext) *GenerateReplyTool {
	return &GenerateReplyTool{generator: generator, env: env}
}

func (t *GenerateReplyTool) Name() string        { return "generate_reply" }
func (t *GenerateReplyTool) Description() string { return "Draft a reply to a given tweet body without posting it." }
func (t *GenerateReplyTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}
}
func (t *GenerateReplyTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GenerateReplyTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	text, _ := params["text"].(string)
	if text == "" {
		return t.env.Fail(ErrInvalidInput, "text is required", false, 0, time.Since(start))
	}
	reply, err := t.generator.DraftReply(ctx, text)
	if err != nil {
		return t.env.Fail(ErrLLMError, err.Error(), true, 0, time.Since(start))
	}
	if len(reply) > maxTweetChars {
		reply = loops.TruncateAtWordBoundary(reply, maxTweetChars)
	}
	return t.env.Success(map[string]any{"text": reply}, time.Since(start))
}

// GenerateThreadTool drafts an ordered set of thread tweet bodies without
// posting them, backing the generate_thread tool.
type GenerateThreadTool struct {
	generator loops.ThreadGenerator
	env       EnvelopeContext
}

func NewGenerateThreadTool(generator loops.ThreadGenerator, env EnvelopeContext) *GenerateThreadTool {
	return &GenerateThreadTool{generator: generator, env: env}
}

func (t *GenerateThreadTool) Name() string        { return "generate_thread" }
func (t *GenerateThreadTool) Description() string { return "Draft a multi-tweet thread without posting it." }
func (t *GenerateThreadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"topic": map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"topic"},
	}
}
func (t *GenerateThreadTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GenerateThreadTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	topic, _ := params["topic"].(string)
	if topic == "" {
		return t.env.Fail(ErrInvalidInput, "topic is required", false, 0, time.Since(start))
	}
	count := 5
	if c, ok := params["count"].(float64); ok && c > 0 {
		count = int(c)
	}
	tweets, err := t.generator.GenerateThread(ctx, topic, count)
	if err != nil {
		return t.env.Fail(ErrLLMError, err.Error(), true, 0, time.Since(start))
	}
	return t.env.Success(map[string]any{"tweets": tweets}, time.Since(start))
}

// ProposeAndQueueRepliesTool drafts a reply to a mention and always routes
// it to the approval queue rather than posting directly -- the
// always-review-first composite counterpart to
// internal/loops.MentionsLoop.handleMention's post-or-approve routing.
// Backs the propose_and_queue_replies tool (§4.7); an identical call
// repeated inside the idempotency window must be refused as a duplicate
// rather than silently drafting and queuing a second time, one of the
// spec's own testable scenarios.
type ProposeAndQueueRepliesTool struct {
	generator       ReplyDrafter
	evaluator       *policy.Evaluator
	productKeywords []string
	env             EnvelopeContext
}

// NewProposeAndQueueRepliesTool builds the propose_and_queue_replies tool.
func NewProposeAndQueueRepliesTool(generator ReplyDrafter, evaluator *policy.Evaluator, productKeywords []string, env EnvelopeContext) *ProposeAndQueueRepliesTool {
	return &ProposeAndQueueRepliesTool{generator: generator, evaluator: evaluator, productKeywords: productKeywords, env: env}
}

func (t *ProposeAndQueueRepliesTool) Name() string { return "propose_and_queue_replies" }
func (t *ProposeAndQueueRepliesTool) Description() string {
	return "Draft a reply to a mention and queue it for human approval."
}
func (t *ProposeAndQueueRepliesTool) Schema() map[string]any {
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
func (t *ProposeAndQueueRepliesTool) Entry() Entry { return entryByName(t.Name()) }

func (t *ProposeAndQueueRepliesTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	inReplyTo, _ := params["in_reply_to_id"].(string)
	author, _ := params["author_id"].(string)
	mentionText, _ := params["text"].(string)
	if inReplyTo == "" || mentionText == "" {
		return t.env.Fail(ErrInvalidInput, "in_reply_to_id and text are required", false, 0, time.Since(start))
	}

	draft, err := t.generator.DraftReply(ctx, mentionText)
	if err != nil {
		return t.env.Fail(ErrLLMError, err.Error(), true, 0, time.Since(start))
	}
	if len(draft) > maxTweetChars {
		draft = loops.TruncateAtWordBoundary(draft, maxTweetChars)
	}

	req := policy.MutationRequest{
		ToolName:        t.Name(),
		Action:          "reply",
		Text:            draft,
		Author:          author,
		MentionsProduct: safety.MentionsKeyword(draft, t.productKeywords),
		Params:          map[string]any{"in_reply_to_id": inReplyTo, "author_id": author, "text": mentionText},
	}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{
			"routed_to_approval": true,
			"approval_queue_id":  decision.ApprovalID,
			"text":               draft,
		}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "text": draft}, time.Since(start))
	}

	// The pipeline cleared this mutation the way it would clear a direct
	// reply, but this tool's contract is "queue for review", never "post" --
	// queue it explicitly rather than calling a poster.
	id, err := t.evaluator.QueueForApproval(ctx, req)
	if err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	return t.env.Success(map[string]any{
		"routed_to_approval": true,
		"approval_queue_id":  id,
		"text":               draft,
	}, time.Since(start))
}
