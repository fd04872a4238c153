package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// maxTweetLen is spec.md's hard cap on outbound tweet text.
const maxTweetLen = 280

// contentExploitRatio is content_loop.rs's EXPLOIT_RATIO: the fraction of
// topic picks that exploit the top-scoring topic rather than explore a
// random one.
const contentExploitRatio = 0.8

// TweetGenerator produces tweet text for a topic via the configured LLM
// provider (see SPEC_FULL.md's llm collaborator contract).
type TweetGenerator interface {
	GenerateTweet(ctx context.Context, topic string) (string, error)
}

// TopicScorer ranks topics by historical engagement for epsilon-greedy
// selection, grounded on content_loop.rs's TopicScorer trait.
type TopicScorer interface {
	TopTopics(ctx context.Context, limit int) ([]string, error)
}

// ContentPoster is the subset of xapi.Client the content loop writes
// through.
type ContentPoster interface {
	PostTweet(ctx context.Context, text string) (xapi.PostedTweet, error)
}

// ContentLoop generates and posts original tweets on a rotating topic list,
// grounded nearly line-for-line on content_loop.rs's ContentLoop.
type ContentLoop struct {
	logger *slog.Logger
	clk    clock.Clock
	sched  clock.Schedule

	generator TweetGenerator
	scorer    TopicScorer
	poster    ContentPoster
	evaluator *policy.Evaluator
	scheduled ports.ScheduledPostPort
	audit     ports.AuditPort
	telemetry ports.TelemetryPort

	topics     []string
	postWindow time.Duration
	dryRun     bool

	mu           sync.Mutex
	recentTopics []string
	lastPostAt   time.Time
	haveLastPost bool
	usedSlots    map[string]bool
	rng          *rand.Rand
}

// ContentOption configures a ContentLoop.
type ContentOption func(*ContentLoop)

func WithContentLogger(l *slog.Logger) ContentOption { return func(c *ContentLoop) { c.logger = l } }
func WithContentClock(cl clock.Clock) ContentOption  { return func(c *ContentLoop) { c.clk = cl } }
func WithContentScorer(s TopicScorer) ContentOption  { return func(c *ContentLoop) { c.scorer = s } }
func WithContentAudit(a ports.AuditPort) ContentOption {
	return func(c *ContentLoop) { c.audit = a }
}
func WithContentTelemetry(t ports.TelemetryPort) ContentOption {
	return func(c *ContentLoop) { c.telemetry = t }
}
func WithContentScheduledPosts(p ports.ScheduledPostPort) ContentOption {
	return func(c *ContentLoop) { c.scheduled = p }
}
func WithContentRand(rng *rand.Rand) ContentOption { return func(c *ContentLoop) { c.rng = rng } }

// NewContentLoop builds a ContentLoop over topics, posting no more than
// once per postWindow (interval mode) or at schedule's configured slots
// (slot mode).
func NewContentLoop(generator TweetGenerator, poster ContentPoster, evaluator *policy.Evaluator, topics []string, postWindow time.Duration, sched clock.Schedule, dryRun bool, opts ...ContentOption) *ContentLoop {
	c := &ContentLoop{
		logger:     slog.Default().With("component", "loops.content"),
		clk:        clock.SystemClock{},
		sched:      sched,
		generator:  generator,
		poster:     poster,
		evaluator:  evaluator,
		topics:     topics,
		postWindow: postWindow,
		dryRun:     dryRun,
		usedSlots:  make(map[string]bool),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ContentLoop) Name() string          { return "content" }
func (c *ContentLoop) Schedule() clock.Schedule { return c.sched }

// RunOnce runs one iteration of the content loop: scheduled-post check,
// too-soon/rate-limit gating, topic selection, generation, and posting.
func (c *ContentLoop) RunOnce(ctx context.Context) error {
	start := c.clk.Now()
	result := c.runIteration(ctx)
	recordOutcome(ctx, c.logger, c.audit, c.telemetry, c.Name(), c.clk.Now().Sub(start), result)
	return result.Err
}

func (c *ContentLoop) runIteration(ctx context.Context) Result {
	if len(c.topics) == 0 {
		c.logger.Warn("no topics configured, content loop has nothing to post")
		return noCandidates("no topics configured")
	}

	if r, handled := c.tryPostScheduled(ctx); handled {
		return r
	}

	now := c.clk.Now()
	if c.sched.Kind != clock.KindSlots {
		c.mu.Lock()
		last, have := c.lastPostAt, c.haveLastPost
		c.mu.Unlock()
		if have {
			elapsed := elapsedSince(now, last)
			if elapsed < c.postWindow {
				return tooSoon(fmt.Sprintf("elapsed=%s window=%s", elapsed, c.postWindow))
			}
		}
	}

	topic := c.pickTopicEpsilonGreedy(ctx)
	result := c.generateAndPost(ctx, topic)

	if result.Outcome == OutcomePosted {
		c.mu.Lock()
		maxRecent := recentCapacity(len(c.topics))
		pushRecent(&c.recentTopics, maxRecent, topic)
		c.lastPostAt = now
		c.haveLastPost = true
		c.mu.Unlock()
	}
	return result
}

func (c *ContentLoop) tryPostScheduled(ctx context.Context) (Result, bool) {
	if c.scheduled == nil {
		return Result{}, false
	}
	due, err := c.scheduled.DueBefore(ctx, c.clk.Now())
	if err != nil || len(due) == 0 {
		return Result{}, false
	}
	post := due[0]

	if c.dryRun {
		c.logger.Info("dry run: would post scheduled content", "id", post.ID)
		return posted("scheduled:" + post.ID), true
	}

	decision := c.evaluator.Evaluate(ctx, policy.MutationRequest{ToolName: "post_tweet", Text: post.Text})
	switch decision.Outcome {
	case policy.Deny:
		return Result{Outcome: OutcomeRateLimited, Detail: decision.Detail}, true
	case policy.ApprovalRequired:
		return approvalQueued(decision.ApprovalID), true
	case policy.DryRun:
		return posted("scheduled:" + post.ID + " (dry-run)"), true
	}

	ref, err := c.poster.PostTweet(ctx, post.Text)
	if err != nil {
		return failed(fmt.Errorf("scheduled post failed: %w", err)), true
	}
	c.evaluator.Commit(ctx, policy.MutationRequest{ToolName: "post_tweet", Text: post.Text})
	_ = c.scheduled.MarkPosted(ctx, post.ID, ref.ID)
	return posted("scheduled:" + post.ID), true
}

// pickTopicEpsilonGreedy implements content_loop.rs's
// pick_topic_epsilon_greedy: with a configured scorer, 80% of picks exploit
// the highest-ranked non-recent topic; the rest (and any exploit miss)
// explore uniformly among non-recent topics.
func (c *ContentLoop) pickTopicEpsilonGreedy(ctx context.Context) string {
	c.mu.Lock()
	recent := append([]string(nil), c.recentTopics...)
	c.mu.Unlock()

	if c.scorer != nil && c.rng.Float64() < contentExploitRatio {
		top, err := c.scorer.TopTopics(ctx, 10)
		if err == nil {
			for _, t := range top {
				if contains(c.topics, t) && !contains(recent, t) {
					return t
				}
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return pickTopic(c.topics, &c.recentTopics, c.rng.Intn)
}

// generateAndPost generates tweet text for topic, retrying once with a
// "shorter" hint if it overflows 280 chars and word-boundary truncating a
// still-overlong retry, then posts through the policy evaluator.
func (c *ContentLoop) generateAndPost(ctx context.Context, topic string) Result {
	content, err := c.generator.GenerateTweet(ctx, topic)
	if err != nil {
		return failed(fmt.Errorf("generation failed: %w", err))
	}

	if len(content) > maxTweetLen {
		shorterTopic := topic + " (IMPORTANT: keep under 280 characters)"
		retry, err := c.generator.GenerateTweet(ctx, shorterTopic)
		switch {
		case err != nil:
			content = truncateAtWordBoundary(content, maxTweetLen)
		case len(retry) <= maxTweetLen:
			content = retry
		default:
			content = truncateAtWordBoundary(retry, maxTweetLen)
		}
	}

	if c.dryRun {
		c.logger.Info("dry run: would post tweet", "topic", topic, "chars", len(content))
		return posted(topic)
	}

	decision := c.evaluator.Evaluate(ctx, policy.MutationRequest{ToolName: "post_tweet", Text: content})
	switch decision.Outcome {
	case policy.Deny:
		if decision.Reason == "quota_exceeded" {
			return rateLimited(decision.Detail)
		}
		return Result{Outcome: OutcomeFailed, Detail: decision.Detail, Err: fmt.Errorf("denied: %s", decision.Reason)}
	case policy.ApprovalRequired:
		return approvalQueued(decision.ApprovalID)
	case policy.DryRun:
		return posted(topic + " (dry-run)")
	}

	if _, err := c.poster.PostTweet(ctx, content); err != nil {
		return failed(err)
	}
	c.evaluator.Commit(ctx, policy.MutationRequest{ToolName: "post_tweet", Text: content})
	return posted(topic)
}
