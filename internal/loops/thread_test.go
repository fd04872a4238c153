package loops

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitbot/tuitbot-core/internal/clock"
)

type stubThreadGenerator struct {
	tweets []string
	err    error
	calls  int
	count  int
}

func (s *stubThreadGenerator) GenerateThread(_ context.Context, topic string, count int) ([]string, error) {
	s.calls++
	s.count = count
	if s.err != nil {
		return nil, s.err
	}
	return s.tweets, nil
}

type stubThreadPoster struct {
	posted   []string
	replyTo  []string
	attempts int
	failAt   int // 1-indexed overall attempt number (0 = never fail)
}

func (s *stubThreadPoster) PostTweet(_ context.Context, text string) (string, error) {
	s.attempts++
	if s.failAt == s.attempts {
		return "", fmt.Errorf("post failed")
	}
	s.posted = append(s.posted, text)
	return fmt.Sprintf("root-%d", len(s.posted)), nil
}

func (s *stubThreadPoster) ReplyToTweet(_ context.Context, inReplyToID, text string) (string, error) {
	s.attempts++
	if s.failAt == s.attempts {
		return "", fmt.Errorf("reply failed")
	}
	s.posted = append(s.posted, text)
	s.replyTo = append(s.replyTo, inReplyToID)
	return fmt.Sprintf("reply-%d", len(s.posted)), nil
}

func noJitter(time.Duration) {}

func TestThreadLoopPostsFullChain(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubThreadGenerator{tweets: []string{"one", "two", "three"}}
	poster := &stubThreadPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	th := NewThreadLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithThreadClock(fc), WithThreadJitterSleep(noJitter))

	require.NoError(t, th.RunOnce(context.Background()))
	require.Len(t, poster.posted, 3)
	assert.Equal(t, []string{"root-1", "reply-2"}, poster.replyTo)
}

func TestThreadLoopTooSoon(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubThreadGenerator{tweets: []string{"one", "two"}}
	poster := &stubThreadPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	th := NewThreadLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithThreadClock(fc), WithThreadJitterSleep(noJitter))

	require.NoError(t, th.RunOnce(context.Background()))
	result := th.runIteration(context.Background())
	assert.Equal(t, OutcomeTooSoon, result.Outcome)
}

func TestThreadLoopPartialFailureMidChain(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubThreadGenerator{tweets: []string{"one", "two", "three"}}
	poster := &stubThreadPoster{failAt: 2}
	evaluator := newTestEvaluatorForLoops(now)

	th := NewThreadLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithThreadClock(fc), WithThreadJitterSleep(noJitter))

	result := th.runIteration(context.Background())
	assert.Equal(t, OutcomePartial, result.Outcome)
	assert.Len(t, poster.posted, 1)
}

func TestThreadLoopGenerationFailure(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubThreadGenerator{err: errors.New("llm down")}
	poster := &stubThreadPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	th := NewThreadLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithThreadClock(fc), WithThreadJitterSleep(noJitter))

	result := th.runIteration(context.Background())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.GreaterOrEqual(t, gen.calls, 1)
}

func TestThreadLoopRunOnceWithTopicClampsCount(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubThreadGenerator{tweets: []string{"one", "two"}}
	poster := &stubThreadPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	th := NewThreadLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithThreadClock(fc), WithThreadJitterSleep(noJitter))

	result := th.RunOnceWithTopic(context.Background(), "custom topic", 50)
	assert.Equal(t, OutcomePosted, result.Outcome)
	assert.Equal(t, maxThreadTweets, gen.count)
}

func TestClampInt(t *testing.T) {
	assert.Equal(t, minThreadTweets, clampInt(0, minThreadTweets, maxThreadTweets))
	assert.Equal(t, maxThreadTweets, clampInt(100, minThreadTweets, maxThreadTweets))
	assert.Equal(t, 5, clampInt(5, minThreadTweets, maxThreadTweets))
}
