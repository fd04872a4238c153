package loops

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// maxMentionsPerRun bounds how many pages the mentions loop will walk in a
// single iteration, so a backlog after downtime can't make one iteration
// run unbounded.
const maxMentionsPerRun = 5

// MentionFetcher is the subset of xapi.Client the mentions loop polls
// through.
type MentionFetcher interface {
	Mentions(ctx context.Context, userID, sinceID, nextToken string) (xapi.SearchResult, error)
}

// ReplyGenerator drafts reply text for an incoming mention via the
// configured LLM provider.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, mention xapi.Tweet) (string, error)
}

// MentionPoster posts a reply to a mention.
type MentionPoster interface {
	ReplyToTweet(ctx context.Context, inReplyToID, text string) (id string, err error)
}

// MentionsLoop polls for new mentions of the bot's own account and either
// posts an LLM-drafted reply or routes it to the approval queue, per
// spec.md §4.6.4. Built from spec.md prose; no original_source automation
// file for mentions survived distillation (absent from
// original_source/_INDEX.md).
type MentionsLoop struct {
	logger *slog.Logger
	clk    clock.Clock
	sched  clock.Schedule

	fetcher   MentionFetcher
	generator ReplyGenerator
	poster    MentionPoster
	evaluator *policy.Evaluator
	audit     ports.AuditPort
	telemetry ports.TelemetryPort

	userID          string
	dryRun          bool
	productKeywords []string

	mu      sync.Mutex
	sinceID string
}

// MentionsOption configures a MentionsLoop.
type MentionsOption func(*MentionsLoop)

func WithMentionsLogger(l *slog.Logger) MentionsOption {
	return func(m *MentionsLoop) { m.logger = l }
}
func WithMentionsClock(cl clock.Clock) MentionsOption {
	return func(m *MentionsLoop) { m.clk = cl }
}
func WithMentionsAudit(a ports.AuditPort) MentionsOption {
	return func(m *MentionsLoop) { m.audit = a }
}
func WithMentionsTelemetry(t ports.TelemetryPort) MentionsOption {
	return func(m *MentionsLoop) { m.telemetry = t }
}
func WithMentionsSinceID(id string) MentionsOption {
	return func(m *MentionsLoop) { m.sinceID = id }
}

// WithMentionsProductKeywords sets the business.product_keywords list the
// loop checks each drafted reply against to set MentionsProduct (§4.4's
// product-mention ratio tracker input).
func WithMentionsProductKeywords(keywords []string) MentionsOption {
	return func(m *MentionsLoop) { m.productKeywords = keywords }
}

// NewMentionsLoop builds a MentionsLoop polling mentions of userID.
func NewMentionsLoop(fetcher MentionFetcher, generator ReplyGenerator, poster MentionPoster, evaluator *policy.Evaluator, userID string, sched clock.Schedule, dryRun bool, opts ...MentionsOption) *MentionsLoop {
	m := &MentionsLoop{
		logger:    slog.Default().With("component", "loops.mentions"),
		clk:       clock.SystemClock{},
		sched:     sched,
		fetcher:   fetcher,
		generator: generator,
		poster:    poster,
		evaluator: evaluator,
		userID:    userID,
		dryRun:    dryRun,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MentionsLoop) Name() string            { return "mentions" }
func (m *MentionsLoop) Schedule() clock.Schedule { return m.sched }

func (m *MentionsLoop) RunOnce(ctx context.Context) error {
	start := m.clk.Now()
	result := m.runIteration(ctx)
	recordOutcome(ctx, m.logger, m.audit, m.telemetry, m.Name(), m.clk.Now().Sub(start), result)
	return result.Err
}

func (m *MentionsLoop) runIteration(ctx context.Context) Result {
	m.mu.Lock()
	cursor := m.sinceID
	m.mu.Unlock()

	replied, queued, skipped, errored := 0, 0, 0, 0
	nextToken := ""
	newestSeen := cursor

	for page := 0; page < maxMentionsPerRun; page++ {
		res, err := m.fetcher.Mentions(ctx, m.userID, cursor, nextToken)
		if err != nil {
			if page == 0 {
				return failed(fmt.Errorf("fetch mentions: %w", err))
			}
			break
		}

		// The API returns newest-first; walk oldest-to-newest so replies
		// are posted (and the cursor advances) in chronological order.
		for i := len(res.Tweets) - 1; i >= 0; i-- {
			mention := res.Tweets[i]
			if newestSeen == "" || mention.ID > newestSeen {
				newestSeen = mention.ID
			}

			outcome := m.handleMention(ctx, mention)
			switch outcome {
			case mentionReplied:
				replied++
			case mentionQueued:
				queued++
			case mentionSkipped:
				skipped++
			case mentionErrored:
				errored++
			}
		}

		if res.NextToken == "" {
			break
		}
		nextToken = res.NextToken
	}

	if newestSeen != cursor {
		m.mu.Lock()
		m.sinceID = newestSeen
		m.mu.Unlock()
	}

	if replied == 0 && queued == 0 && errored == 0 {
		return noCandidates("no new mentions")
	}
	return posted(fmt.Sprintf("replied=%d queued=%d skipped=%d errored=%d", replied, queued, skipped, errored))
}

type mentionOutcome int

const (
	mentionSkipped mentionOutcome = iota
	mentionReplied
	mentionQueued
	mentionErrored
)

// handleMention drafts a reply for one mention and either posts it, queues
// it for approval, or skips/errors, per spec.md's post-or-approve routing.
func (m *MentionsLoop) handleMention(ctx context.Context, mention xapi.Tweet) mentionOutcome {
	reply, err := m.generator.GenerateReply(ctx, mention)
	if err != nil {
		m.logger.Warn("reply generation failed", "mention_id", mention.ID, "error", err)
		return mentionErrored
	}
	if len(reply) > maxTweetLen {
		reply = truncateAtWordBoundary(reply, maxTweetLen)
	}

	if m.dryRun {
		m.logger.Info("dry run: would reply to mention", "mention_id", mention.ID)
		return mentionReplied
	}

	decision := m.evaluator.Evaluate(ctx, policy.MutationRequest{
		ToolName:        "reply",
		Text:            reply,
		Author:          mention.AuthorID,
		MentionsProduct: safety.MentionsKeyword(reply, m.productKeywords),
	})
	switch decision.Outcome {
	case policy.Deny:
		m.logger.Info("mention reply denied", "mention_id", mention.ID, "reason", decision.Reason)
		return mentionSkipped
	case policy.ApprovalRequired:
		return mentionQueued
	case policy.DryRun:
		m.logger.Info("dry run: would reply to mention", "mention_id", mention.ID)
		return mentionReplied
	}

	if _, err := m.poster.ReplyToTweet(ctx, mention.ID, reply); err != nil {
		m.logger.Warn("failed to post mention reply", "mention_id", mention.ID, "error", err)
		return mentionErrored
	}
	m.evaluator.Commit(ctx, policy.MutationRequest{ToolName: "reply", Text: reply, Author: mention.AuthorID})
	return mentionReplied
}
