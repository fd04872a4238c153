package loops

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

type stubGenerator struct {
	text string
	err  error
	gen  func(topic string) string
}

func (s *stubGenerator) GenerateTweet(_ context.Context, topic string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.gen != nil {
		return s.gen(topic), nil
	}
	return s.text, nil
}

type stubPoster struct {
	posts []string
	err   error
}

func (s *stubPoster) PostTweet(_ context.Context, text string) (xapi.PostedTweet, error) {
	if s.err != nil {
		return xapi.PostedTweet{}, s.err
	}
	s.posts = append(s.posts, text)
	return xapi.PostedTweet{ID: "t1", Text: text}, nil
}

func newTestEvaluatorForLoops(now time.Time) *policy.Evaluator {
	clk := func() time.Time { return now }
	banned := safety.NewBannedPhraseFilter(nil)
	quota := safety.NewQuotaStore(clk)
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1000, clk)
	ratio := safety.NewProductMentionTracker(24*time.Hour, clk)
	return policy.NewEvaluator(banned, quota, throttle, ratio, ports.NewMemoryApprovalQueue())
}

func TestContentLoopPostsAndTracksRecentTopics(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubGenerator{text: "hello world"}
	poster := &stubPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	c := NewContentLoop(gen, poster, evaluator, []string{"go", "rust"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithContentClock(fc))

	require.NoError(t, c.RunOnce(context.Background()))
	require.Len(t, poster.posts, 1)
	assert.Equal(t, "hello world", poster.posts[0])
	assert.Len(t, c.recentTopics, 1)
}

func TestContentLoopTooSoonWithinPostWindow(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubGenerator{text: "hi"}
	poster := &stubPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	c := NewContentLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithContentClock(fc))

	require.NoError(t, c.RunOnce(context.Background()))
	require.Len(t, poster.posts, 1)

	result := c.runIteration(context.Background())
	assert.Equal(t, OutcomeTooSoon, result.Outcome)
	assert.Len(t, poster.posts, 1)
}

func TestContentLoopTruncatesOverlongTweet(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	long := strings.Repeat("a", 400)
	gen := &stubGenerator{gen: func(topic string) string {
		if strings.Contains(topic, "IMPORTANT") {
			return long
		}
		return long
	}}
	poster := &stubPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	c := NewContentLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithContentClock(fc))

	require.NoError(t, c.RunOnce(context.Background()))
	require.Len(t, poster.posts, 1)
	assert.LessOrEqual(t, len(poster.posts[0]), maxTweetLen)
}

func TestContentLoopDryRunNeverPosts(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubGenerator{text: "hello"}
	poster := &stubPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	c := NewContentLoop(gen, poster, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, true,
		WithContentClock(fc))

	require.NoError(t, c.RunOnce(context.Background()))
	assert.Empty(t, poster.posts)
}

func TestContentLoopNoTopicsConfigured(t *testing.T) {
	now := time.Now()
	evaluator := newTestEvaluatorForLoops(now)
	c := NewContentLoop(&stubGenerator{}, &stubPoster{}, evaluator, nil, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false)

	result := c.runIteration(context.Background())
	assert.Equal(t, OutcomeNoCandidates, result.Outcome)
}

func TestContentLoopGenerationFailure(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	gen := &stubGenerator{err: errors.New("llm down")}
	evaluator := newTestEvaluatorForLoops(now)

	c := NewContentLoop(gen, &stubPoster{}, evaluator, []string{"go"}, time.Hour,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour}, false,
		WithContentClock(fc))

	result := c.runIteration(context.Background())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	require.Error(t, result.Err)
}

func TestTruncateAtWordBoundary(t *testing.T) {
	s := "the quick brown fox jumps over the lazy dog repeatedly until it is quite long indeed"
	out := truncateAtWordBoundary(s, 40)
	assert.LessOrEqual(t, len(out), 40)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestRecentCapacity(t *testing.T) {
	assert.Equal(t, 3, recentCapacity(4))
	assert.Equal(t, 1, recentCapacity(1))
	assert.Equal(t, 5, recentCapacity(10))
}
