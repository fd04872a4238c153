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
)

// minThreadTweets and maxThreadTweets are thread_loop.rs's run_once clamp
// range for an explicitly requested tweet count.
const (
	minThreadTweets = 2
	maxThreadTweets = 15
	// threadValidationRetries is generate_with_validation's max_retries.
	threadValidationRetries = 3
)

// ThreadGenerator produces an ordered set of tweet bodies for a thread.
type ThreadGenerator interface {
	GenerateThread(ctx context.Context, topic string, count int) ([]string, error)
}

// ThreadPoster posts the first tweet of a thread standalone and each
// subsequent tweet as a reply to its predecessor, grounded on
// thread_loop.rs's ThreadPoster trait.
type ThreadPoster interface {
	PostTweet(ctx context.Context, text string) (id string, err error)
	ReplyToTweet(ctx context.Context, inReplyToID, text string) (id string, err error)
}

// ThreadLoop generates and posts multi-tweet reply-chain threads, grounded
// on thread_loop.rs's ThreadLoop.
type ThreadLoop struct {
	logger *slog.Logger
	clk    clock.Clock
	sched  clock.Schedule

	generator ThreadGenerator
	poster    ThreadPoster
	evaluator *policy.Evaluator
	audit     ports.AuditPort
	telemetry ports.TelemetryPort

	topics           []string
	threadInterval   time.Duration
	dryRun           bool
	jitterSleep      func(time.Duration)

	mu           sync.Mutex
	recentTopics []string
	lastThreadAt time.Time
	haveLast     bool
	rng          *rand.Rand
}

// ThreadOption configures a ThreadLoop.
type ThreadOption func(*ThreadLoop)

func WithThreadLogger(l *slog.Logger) ThreadOption { return func(t *ThreadLoop) { t.logger = l } }
func WithThreadClock(cl clock.Clock) ThreadOption  { return func(t *ThreadLoop) { t.clk = cl } }
func WithThreadAudit(a ports.AuditPort) ThreadOption {
	return func(t *ThreadLoop) { t.audit = a }
}
func WithThreadTelemetry(te ports.TelemetryPort) ThreadOption {
	return func(t *ThreadLoop) { t.telemetry = te }
}
func WithThreadJitterSleep(f func(time.Duration)) ThreadOption {
	return func(t *ThreadLoop) { t.jitterSleep = f }
}

// NewThreadLoop builds a ThreadLoop posting at most once per threadInterval.
func NewThreadLoop(generator ThreadGenerator, poster ThreadPoster, evaluator *policy.Evaluator, topics []string, threadInterval time.Duration, sched clock.Schedule, dryRun bool, opts ...ThreadOption) *ThreadLoop {
	t := &ThreadLoop{
		logger:         slog.Default().With("component", "loops.thread"),
		clk:            clock.SystemClock{},
		sched:          sched,
		generator:      generator,
		poster:         poster,
		evaluator:      evaluator,
		topics:         topics,
		threadInterval: threadInterval,
		dryRun:         dryRun,
		jitterSleep:    time.Sleep,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ThreadLoop) Name() string            { return "thread" }
func (t *ThreadLoop) Schedule() clock.Schedule { return t.sched }

func (t *ThreadLoop) RunOnce(ctx context.Context) error {
	start := t.clk.Now()
	result := t.runIteration(ctx)
	recordOutcome(ctx, t.logger, t.audit, t.telemetry, t.Name(), t.clk.Now().Sub(start), result)
	return result.Err
}

func (t *ThreadLoop) runIteration(ctx context.Context) Result {
	if len(t.topics) == 0 {
		t.logger.Warn("no topics configured, thread loop has nothing to post")
		return noCandidates("no topics configured")
	}

	now := t.clk.Now()
	t.mu.Lock()
	last, have := t.lastThreadAt, t.haveLast
	t.mu.Unlock()
	if have {
		elapsed := elapsedSince(now, last)
		if elapsed < t.threadInterval {
			return tooSoon(fmt.Sprintf("elapsed=%s interval=%s", elapsed, t.threadInterval))
		}
	}

	t.mu.Lock()
	maxRecent := recentCapacity(len(t.topics))
	topic := pickTopic(t.topics, &t.recentTopics, t.rng.Intn)
	t.mu.Unlock()

	result := t.generateAndPost(ctx, topic, 0)

	if result.Outcome == OutcomePosted {
		t.mu.Lock()
		pushRecent(&t.recentTopics, maxRecent, topic)
		t.lastThreadAt = now
		t.haveLast = true
		t.mu.Unlock()
	}
	return result
}

// RunOnceWithTopic is the single-shot entry point for an operator-invoked
// "post a thread now" tool call, grounded on thread_loop.rs's run_once:
// skips the interval check but still clamps count and generates/posts.
func (t *ThreadLoop) RunOnceWithTopic(ctx context.Context, topic string, count int) Result {
	if topic == "" {
		if len(t.topics) == 0 {
			return noCandidates("no topics configured")
		}
		topic = t.topics[t.rng.Intn(len(t.topics))]
	}
	if count != 0 {
		count = clampInt(count, minThreadTweets, maxThreadTweets)
	}
	return t.generateAndPost(ctx, topic, count)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// generateAndPost generates a validated thread and posts it as a reply
// chain, tracking partial failure per spec.md's "Partial-failure handling".
func (t *ThreadLoop) generateAndPost(ctx context.Context, topic string, count int) Result {
	tweets, result, ok := t.generateWithValidation(ctx, topic, count)
	if !ok {
		return result
	}

	if t.dryRun {
		t.logger.Info("dry run: would post thread", "topic", topic, "tweets", len(tweets))
		return posted(fmt.Sprintf("%s (%d tweets, dry-run)", topic, len(tweets)))
	}

	return t.postReplyChain(ctx, tweets, topic)
}

// generateWithValidation makes up to threadValidationRetries generation
// attempts, asking for shorter tweets on every attempt after the first,
// until every tweet in the thread is <= 280 chars.
func (t *ThreadLoop) generateWithValidation(ctx context.Context, topic string, count int) ([]string, Result, bool) {
	for attempt := 0; attempt < threadValidationRetries; attempt++ {
		effectiveTopic := topic
		if attempt > 0 {
			effectiveTopic = topic + " (IMPORTANT: each tweet MUST be under 280 characters)"
		}

		tweets, err := t.generator.GenerateThread(ctx, effectiveTopic, count)
		if err != nil {
			return nil, failed(fmt.Errorf("generation failed: %w", err)), false
		}

		allValid := true
		for _, tw := range tweets {
			if len(tw) > maxTweetLen {
				allValid = false
				break
			}
		}
		if allValid {
			return tweets, Result{}, true
		}
	}
	return nil, Result{Outcome: OutcomeFailed, Detail: "tweets still exceed 280 characters after retries", Err: fmt.Errorf("thread validation failed after %d attempts", threadValidationRetries)}, false
}

// postReplyChain posts tweets[0] standalone and each subsequent tweet as a
// reply to its predecessor's id, with a 1-3s jitter between posts. If post
// k fails after k-1 succeed, it returns PartialFailure carrying the root id
// and sent count; already-posted tweets are never rolled back.
func (t *ThreadLoop) postReplyChain(ctx context.Context, tweets []string, topic string) Result {
	total := len(tweets)
	var previousID, rootID string

	for i, text := range tweets {
		decision := t.evaluator.Evaluate(ctx, policy.MutationRequest{ToolName: "thread", Text: text})
		if decision.Outcome != policy.Allow {
			if i == 0 {
				return Result{Outcome: OutcomeFailed, Detail: "denied: " + decision.Reason, Err: fmt.Errorf("thread denied before first tweet: %s", decision.Reason)}
			}
			return partial(fmt.Sprintf("topic=%s posted=%d/%d root=%s reason=%s", topic, i, total, rootID, decision.Reason))
		}

		var id string
		var err error
		if i == 0 {
			id, err = t.poster.PostTweet(ctx, text)
		} else {
			id, err = t.poster.ReplyToTweet(ctx, previousID, text)
		}
		if err != nil {
			return partial(fmt.Sprintf("topic=%s posted=%d/%d root=%s error=%v", topic, i, total, rootID, err))
		}
		t.evaluator.Commit(ctx, policy.MutationRequest{ToolName: "thread", Text: text})

		if i == 0 {
			rootID = id
		}
		previousID = id

		if i < total-1 {
			t.jitterSleep(time.Second + time.Duration(t.rng.Intn(2000))*time.Millisecond)
		}
	}

	return posted(fmt.Sprintf("topic=%s tweets=%d root=%s", topic, total, rootID))
}
