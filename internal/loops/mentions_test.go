package loops

import (
	"context"
	"errors"
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

type stubMentionFetcher struct {
	pages []xapi.SearchResult
	calls int
	err   error
}

func (s *stubMentionFetcher) Mentions(_ context.Context, userID, sinceID, nextToken string) (xapi.SearchResult, error) {
	if s.err != nil {
		return xapi.SearchResult{}, s.err
	}
	if s.calls >= len(s.pages) {
		return xapi.SearchResult{}, nil
	}
	p := s.pages[s.calls]
	s.calls++
	return p, nil
}

type stubReplyGenerator struct {
	reply string
	err   error
}

func (s *stubReplyGenerator) GenerateReply(_ context.Context, mention xapi.Tweet) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubMentionPoster struct {
	replies []string
	err     error
}

func (s *stubMentionPoster) ReplyToTweet(_ context.Context, inReplyToID, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.replies = append(s.replies, text)
	return "reply-" + inReplyToID, nil
}

func TestMentionsLoopRepliesAndAdvancesCursor(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	fetcher := &stubMentionFetcher{pages: []xapi.SearchResult{
		{Tweets: []xapi.Tweet{
			{ID: "102", AuthorID: "bob", Text: "@bot nice"},
			{ID: "101", AuthorID: "alice", Text: "@bot hi"},
		}},
	}}
	gen := &stubReplyGenerator{reply: "thanks!"}
	poster := &stubMentionPoster{}
	evaluator := newTestEvaluatorForLoops(now)

	m := NewMentionsLoop(fetcher, gen, poster, evaluator, "bot-id",
		clock.Schedule{Kind: clock.KindInterval, Every: time.Minute}, false,
		WithMentionsClock(fc))

	require.NoError(t, m.RunOnce(context.Background()))
	assert.Len(t, poster.replies, 2)
	assert.Equal(t, "102", m.sinceID)
}

func TestMentionsLoopNoNewMentions(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	fetcher := &stubMentionFetcher{pages: []xapi.SearchResult{{}}}
	evaluator := newTestEvaluatorForLoops(now)

	m := NewMentionsLoop(fetcher, &stubReplyGenerator{}, &stubMentionPoster{}, evaluator, "bot-id",
		clock.Schedule{Kind: clock.KindInterval, Every: time.Minute}, false,
		WithMentionsClock(fc))

	result := m.runIteration(context.Background())
	assert.Equal(t, OutcomeNoCandidates, result.Outcome)
}

func TestMentionsLoopRoutesDeniedMentionToSkip(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	fetcher := &stubMentionFetcher{pages: []xapi.SearchResult{
		{Tweets: []xapi.Tweet{{ID: "1", AuthorID: "alice", Text: "@bot hi"}}},
	}}
	gen := &stubReplyGenerator{reply: "guaranteed returns await"}
	poster := &stubMentionPoster{}

	clk := func() time.Time { return now }
	banned := safety.NewBannedPhraseFilter([]string{"guaranteed returns"})
	quota := safety.NewQuotaStore(clk)
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1000, clk)
	ratio := safety.NewProductMentionTracker(24*time.Hour, clk)
	evaluator := policy.NewEvaluator(banned, quota, throttle, ratio, ports.NewMemoryApprovalQueue())

	m := NewMentionsLoop(fetcher, gen, poster, evaluator, "bot-id",
		clock.Schedule{Kind: clock.KindInterval, Every: time.Minute}, false,
		WithMentionsClock(fc))

	require.NoError(t, m.RunOnce(context.Background()))
	assert.Empty(t, poster.replies)
}

func TestMentionsLoopQueuesApprovalRequiredMention(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	fetcher := &stubMentionFetcher{pages: []xapi.SearchResult{
		{Tweets: []xapi.Tweet{{ID: "1", AuthorID: "alice", Text: "@bot hi"}}},
	}}
	gen := &stubReplyGenerator{reply: "thanks"}
	poster := &stubMentionPoster{}

	clk := func() time.Time { return now }
	banned := safety.NewBannedPhraseFilter(nil)
	quota := safety.NewQuotaStore(clk)
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1000, clk)
	ratio := safety.NewProductMentionTracker(24*time.Hour, clk)
	evaluator := policy.NewEvaluator(banned, quota, throttle, ratio, ports.NewMemoryApprovalQueue(),
		policy.WithApprovalRequiredTools("reply"))

	m := NewMentionsLoop(fetcher, gen, poster, evaluator, "bot-id",
		clock.Schedule{Kind: clock.KindInterval, Every: time.Minute}, false,
		WithMentionsClock(fc))

	result := m.runIteration(context.Background())
	assert.Equal(t, OutcomePosted, result.Outcome)
	assert.Empty(t, poster.replies)
}

func TestMentionsLoopGenerationErrorCountsAsErrored(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	fetcher := &stubMentionFetcher{pages: []xapi.SearchResult{
		{Tweets: []xapi.Tweet{{ID: "1", AuthorID: "alice", Text: "@bot hi"}}},
	}}
	gen := &stubReplyGenerator{err: errors.New("llm down")}
	evaluator := newTestEvaluatorForLoops(now)

	m := NewMentionsLoop(fetcher, gen, &stubMentionPoster{}, evaluator, "bot-id",
		clock.Schedule{Kind: clock.KindInterval, Every: time.Minute}, false,
		WithMentionsClock(fc))

	result := m.runIteration(context.Background())
	assert.Equal(t, OutcomePosted, result.Outcome)
	assert.Contains(t, result.Detail, "errored=1")
}
