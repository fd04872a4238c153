package loops

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// ScoringWeights caps each of the six discovery signals to a maximum point
// contribution, per spec.md §4.6.3: "each normalized to [0, max_signal_points]
// per configuration". The six caps need not sum to exactly 100; Score bounds
// the total to [0, 100] regardless.
type ScoringWeights struct {
	KeywordMax     float64
	FollowerMax    float64
	RecencyMax     float64
	EngagementMax  float64
	ReplyCountMax  float64
	ContentTypeMax float64
}

// DefaultScoringWeights splits 100 points across the six signals as
// 25/15/20/20/10/10 (keyword, follower, recency, engagement, reply count,
// content type).
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		KeywordMax:     25,
		FollowerMax:    15,
		RecencyMax:     20,
		EngagementMax:  20,
		ReplyCountMax:  10,
		ContentTypeMax: 10,
	}
}

// CandidateSignals is the raw, unnormalized input to Score for one
// discovered tweet.
type CandidateSignals struct {
	// KeywordRelevance is 0..1: how well the tweet matches the search query.
	KeywordRelevance float64
	FollowerCount    int
	CreatedAt        time.Time
	LikeCount        int
	RetweetCount     int
	ReplyCount       int
	// IsOriginalContent is true for a standalone tweet, false for a
	// reply/retweet/quote -- content type contributes full points only
	// for original content.
	IsOriginalContent bool
}

// Score computes the weighted multi-signal score spec.md §4.6.3 describes,
// bounded to [0, 100].
func Score(sig CandidateSignals, w ScoringWeights, now time.Time) float64 {
	keyword := clampFloat(sig.KeywordRelevance, 0, 1) * w.KeywordMax

	// log-scaled follower count: 10k followers saturates the cap.
	follower := w.FollowerMax
	if sig.FollowerCount < 10000 {
		follower = w.FollowerMax * logScale(float64(sig.FollowerCount), 10000)
	}

	age := now.Sub(sig.CreatedAt)
	recency := w.RecencyMax
	switch {
	case age < 0:
		recency = w.RecencyMax
	case age > 24*time.Hour:
		recency = 0
	default:
		recency = w.RecencyMax * (1 - float64(age)/float64(24*time.Hour))
	}

	engagementRate := float64(sig.LikeCount+sig.RetweetCount*2) / float64(max1(sig.FollowerCount))
	engagement := w.EngagementMax * clampFloat(engagementRate*1000, 0, 1)

	replyCount := w.ReplyCountMax
	if sig.ReplyCount < 20 {
		replyCount = w.ReplyCountMax * logScale(float64(sig.ReplyCount), 20)
	}

	contentType := 0.0
	if sig.IsOriginalContent {
		contentType = w.ContentTypeMax
	}

	total := keyword + follower + recency + engagement + replyCount + contentType
	return clampFloat(total, 0, 100)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// logScale returns a 0..1 ramp that grows quickly at first and saturates as
// v approaches ceiling, avoiding a single viral outlier from always winning
// a linear scale.
func logScale(v, ceiling float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= ceiling {
		return 1
	}
	return math.Log1p(v) / math.Log1p(ceiling)
}

// keywordRelevance scores how much of query's word set appears in text,
// case-insensitively: the fraction of distinct query terms text contains.
// A multi-word query only fully matches a tweet touching on all of its
// terms, rather than every hit from a single-term overlap scoring 1.0.
func keywordRelevance(query, text string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true
		if strings.Contains(lower, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

// DiscoverySearcher is the subset of xapi.Client the discovery loop reads
// through.
type DiscoverySearcher interface {
	Search(ctx context.Context, query, sinceID, nextToken string) (xapi.SearchResult, error)
}

// DiscoveryLoop iterates configured keyword queries, scores results, and
// persists candidates clearing the configured threshold. Built from
// spec.md §4.6.3 prose; no original_source automation file for discovery
// survived distillation (absent from original_source/_INDEX.md).
type DiscoveryLoop struct {
	logger *slog.Logger
	clk    clock.Clock
	sched  clock.Schedule

	searcher  DiscoverySearcher
	discovery ports.DiscoveryPort
	throttle  *safety.AuthorThrottle
	audit     ports.AuditPort
	telemetry ports.TelemetryPort

	queries      []string
	candidateCap int
	threshold    float64
	weights      ScoringWeights
}

type DiscoveryOption func(*DiscoveryLoop)

func WithDiscoveryLogger(l *slog.Logger) DiscoveryOption {
	return func(d *DiscoveryLoop) { d.logger = l }
}
func WithDiscoveryClock(cl clock.Clock) DiscoveryOption {
	return func(d *DiscoveryLoop) { d.clk = cl }
}
func WithDiscoveryAudit(a ports.AuditPort) DiscoveryOption {
	return func(d *DiscoveryLoop) { d.audit = a }
}
func WithDiscoveryTelemetry(t ports.TelemetryPort) DiscoveryOption {
	return func(d *DiscoveryLoop) { d.telemetry = t }
}
func WithDiscoveryWeights(w ScoringWeights) DiscoveryOption {
	return func(d *DiscoveryLoop) { d.weights = w }
}

// NewDiscoveryLoop builds a DiscoveryLoop over the given keyword queries.
func NewDiscoveryLoop(searcher DiscoverySearcher, discovery ports.DiscoveryPort, throttle *safety.AuthorThrottle, queries []string, candidateCap int, threshold float64, sched clock.Schedule, opts ...DiscoveryOption) *DiscoveryLoop {
	d := &DiscoveryLoop{
		logger:       slog.Default().With("component", "loops.discovery"),
		clk:          clock.SystemClock{},
		sched:        sched,
		searcher:     searcher,
		discovery:    discovery,
		throttle:     throttle,
		queries:      queries,
		candidateCap: candidateCap,
		threshold:    threshold,
		weights:      DefaultScoringWeights(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DiscoveryLoop) Name() string            { return "discovery" }
func (d *DiscoveryLoop) Schedule() clock.Schedule { return d.sched }

func (d *DiscoveryLoop) RunOnce(ctx context.Context) error {
	start := d.clk.Now()
	result := d.runIteration(ctx)
	recordOutcome(ctx, d.logger, d.audit, d.telemetry, d.Name(), d.clk.Now().Sub(start), result)
	return result.Err
}

func (d *DiscoveryLoop) runIteration(ctx context.Context) Result {
	if len(d.queries) == 0 {
		return noCandidates("no discovery queries configured")
	}

	saved := 0
	skipped := 0
	now := d.clk.Now()

	for _, query := range d.queries {
		nextToken := ""
		fetched := 0
		for fetched < d.candidateCap {
			page, err := d.searcher.Search(ctx, query, "", nextToken)
			if err != nil {
				d.logger.Warn("discovery search failed", "query", query, "error", err)
				break
			}
			followers := make(map[string]int, len(page.Users))
			for _, u := range page.Users {
				followers[u.ID] = u.FollowersCount
			}
			for _, tw := range page.Tweets {
				fetched++
				if fetched > d.candidateCap {
					break
				}
				if d.skipCandidate(ctx, tw) {
					skipped++
					continue
				}

				sig := CandidateSignals{
					KeywordRelevance:  keywordRelevance(query, tw.Text),
					FollowerCount:     followers[tw.AuthorID],
					CreatedAt:         tw.CreatedAt,
					LikeCount:         tw.LikeCount,
					RetweetCount:      tw.RetweetCount,
					ReplyCount:        tw.ReplyCount,
					IsOriginalContent: tw.ConversationID == "" || tw.ConversationID == tw.ID,
				}
				score := Score(sig, d.weights, now)
				if score < d.threshold {
					continue
				}

				err := d.discovery.Save(ctx, ports.DiscoveredTweet{
					ID:           tw.ID,
					AuthorID:     tw.AuthorID,
					Text:         tw.Text,
					Score:        score,
					DiscoveredAt: now,
				})
				if err != nil {
					d.logger.Warn("failed to persist discovered candidate", "id", tw.ID, "error", err)
					continue
				}
				saved++
			}
			if page.NextToken == "" || fetched >= d.candidateCap {
				break
			}
			nextToken = page.NextToken
		}
	}

	if saved == 0 {
		return noCandidates(fmt.Sprintf("0 candidates cleared threshold (skipped=%d)", skipped))
	}
	return posted(fmt.Sprintf("saved=%d skipped=%d", saved, skipped))
}

// skipCandidate reports whether tw should be skipped: already engaged, or
// its author is already at the per-author-per-day cap.
func (d *DiscoveryLoop) skipCandidate(ctx context.Context, tw xapi.Tweet) bool {
	if d.discovery != nil {
		if existing, ok, _ := d.discovery.Get(ctx, tw.ID); ok && existing.Engaged {
			return true
		}
	}
	if d.throttle != nil && !d.throttle.Allow(tw.AuthorID) {
		return true
	}
	return false
}
