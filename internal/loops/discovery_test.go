package loops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

type stubSearcher struct {
	pages map[string]xapi.SearchResult // keyed by query
}

func (s *stubSearcher) Search(_ context.Context, query, sinceID, nextToken string) (xapi.SearchResult, error) {
	return s.pages[query], nil
}

func TestScoreBoundedAndWeighted(t *testing.T) {
	now := time.Now()
	w := DefaultScoringWeights()

	best := CandidateSignals{
		KeywordRelevance:  1,
		FollowerCount:     50000,
		CreatedAt:         now,
		LikeCount:         1000,
		RetweetCount:      500,
		ReplyCount:        100,
		IsOriginalContent: true,
	}
	assert.InDelta(t, 100, Score(best, w, now), 0.001)

	worst := CandidateSignals{
		KeywordRelevance:  0,
		FollowerCount:     0,
		CreatedAt:         now.Add(-48 * time.Hour),
		IsOriginalContent: false,
	}
	assert.Equal(t, 0.0, Score(worst, w, now))
}

func TestScoreNeverNegativeOrOverflow(t *testing.T) {
	now := time.Now()
	w := DefaultScoringWeights()
	sig := CandidateSignals{
		KeywordRelevance:  -5,
		FollowerCount:     -100,
		CreatedAt:         now.Add(time.Hour),
		LikeCount:         -10,
		ReplyCount:        -1,
		IsOriginalContent: false,
	}
	score := Score(sig, w, now)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

func TestDiscoveryLoopSavesCandidatesClearingThreshold(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	searcher := &stubSearcher{pages: map[string]xapi.SearchResult{
		"golang": {Tweets: []xapi.Tweet{
			{ID: "1", AuthorID: "a1", Text: "golang is great", CreatedAt: now, LikeCount: 1000, RetweetCount: 500, ReplyCount: 50},
		}},
	}}
	discovery := ports.NewMemoryDiscoveryStore()
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1000, func() time.Time { return now })

	d := NewDiscoveryLoop(searcher, discovery, throttle, []string{"golang"}, 25, 10,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour},
		WithDiscoveryClock(fc))

	require.NoError(t, d.RunOnce(context.Background()))

	saved, ok, err := discovery.Get(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Greater(t, saved.Score, 0.0)
}

func TestDiscoveryLoopSkipsAlreadyEngaged(t *testing.T) {
	now := time.Now()
	fc := clock.NewFakeClock(now)
	searcher := &stubSearcher{pages: map[string]xapi.SearchResult{
		"golang": {Tweets: []xapi.Tweet{
			{ID: "1", AuthorID: "a1", Text: "golang", CreatedAt: now, LikeCount: 1000},
		}},
	}}
	discovery := ports.NewMemoryDiscoveryStore()
	require.NoError(t, discovery.Save(context.Background(), ports.DiscoveredTweet{ID: "1", Engaged: true}))
	throttle := safety.NewAuthorThrottle(24*time.Hour, 1000, func() time.Time { return now })

	d := NewDiscoveryLoop(searcher, discovery, throttle, []string{"golang"}, 25, 0,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour},
		WithDiscoveryClock(fc))

	result := d.runIteration(context.Background())
	assert.Equal(t, OutcomeNoCandidates, result.Outcome)
}

func TestDiscoveryLoopNoQueriesConfigured(t *testing.T) {
	d := NewDiscoveryLoop(&stubSearcher{}, ports.NewMemoryDiscoveryStore(), nil, nil, 25, 10,
		clock.Schedule{Kind: clock.KindInterval, Every: time.Hour})
	result := d.runIteration(context.Background())
	assert.Equal(t, OutcomeNoCandidates, result.Outcome)
}
