// Package loops implements the four automation loop engines (§4.6):
// content, thread, discovery, and mentions. Each loop implements
// clock.Loop so internal/clock.Supervisor can drive it on its own
// schedule, and each routes every write through internal/policy before
// touching internal/xapi, recording an audit and telemetry record on every
// iteration outcome.
//
// Grounded on
// original_source/crates/tuitbot-core/src/automation/content_loop.rs and
// thread_loop.rs for the content and thread loops; discovery.go and
// mentions.go have no surviving original_source file (not present in
// original_source/_INDEX.md) and are built from spec.md §4.6.3/§4.6.4 prose
// in the same run-loop idiom.
package loops

import (
	"time"
)

// Outcome is the small enum spec.md §4.6 says every loop iteration reports.
type Outcome string

const (
	OutcomePosted         Outcome = "posted"
	OutcomeTooSoon        Outcome = "too_soon"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeNoCandidates   Outcome = "no_candidates"
	OutcomeFailed         Outcome = "failed"
	OutcomePartial        Outcome = "partial_failure"
	OutcomeApprovalQueued Outcome = "approval_queued"
)

// Result is the outcome of one loop iteration, logged and recorded as
// telemetry/audit by the caller.
type Result struct {
	Outcome Outcome
	Detail  string
	Err     error
}

func posted(detail string) Result      { return Result{Outcome: OutcomePosted, Detail: detail} }
func tooSoon(detail string) Result     { return Result{Outcome: OutcomeTooSoon, Detail: detail} }
func rateLimited(detail string) Result { return Result{Outcome: OutcomeRateLimited, Detail: detail} }
func noCandidates(detail string) Result {
	return Result{Outcome: OutcomeNoCandidates, Detail: detail}
}
func failed(err error) Result { return Result{Outcome: OutcomeFailed, Err: err, Detail: err.Error()} }
func partial(detail string) Result { return Result{Outcome: OutcomePartial, Detail: detail} }
func approvalQueued(detail string) Result {
	return Result{Outcome: OutcomeApprovalQueued, Detail: detail}
}

// TruncateAtWordBoundary truncates s to at most maxLen bytes, breaking at
// the last space before the cutoff and appending "...". Grounded on
// content_loop.rs's truncate_at_word_boundary. Exported so the generate_tweet
// / generate_reply tools can apply the same tweet-length clamp the scheduled
// content and mentions loops use.
func TruncateAtWordBoundary(s string, maxLen int) string {
	return truncateAtWordBoundary(s, maxLen)
}

func truncateAtWordBoundary(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cutoff := maxLen - 3
	if cutoff < 0 {
		cutoff = 0
	}
	head := s[:cutoff]
	if idx := lastSpace(head); idx >= 0 {
		return head[:idx] + "..."
	}
	return head + "..."
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

// pickTopic returns a topic not present in recent, clearing recent and
// picking freely if every topic is currently "recent". Grounded on
// content_loop.rs's pick_topic.
func pickTopic(topics []string, recent *[]string, intn func(int) int) string {
	available := make([]string, 0, len(topics))
	for _, t := range topics {
		if !contains(*recent, t) {
			available = append(available, t)
		}
	}
	if len(available) == 0 {
		*recent = (*recent)[:0]
		return topics[intn(len(topics))]
	}
	return available[intn(len(available))]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func pushRecent(recent *[]string, maxRecent int, topic string) {
	if len(*recent) >= maxRecent {
		*recent = (*recent)[1:]
	}
	*recent = append(*recent, topic)
}

// recentCapacity is content_loop.rs's min_recent/max_recent sizing:
// max(3, len(topics)/2), capped at len(topics).
func recentCapacity(numTopics int) int {
	cap := numTopics / 2
	if cap < 3 {
		cap = 3
	}
	if cap > numTopics {
		cap = numTopics
	}
	return cap
}

// elapsedSince returns max(0, now-since) as a duration, matching
// content_loop.rs's saturating elapsed-seconds computation.
func elapsedSince(now, since time.Time) time.Duration {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return d
}

// outcomeErrorCode maps a loop Result to the closed telemetry error-code
// vocabulary (§4.7), empty for non-error outcomes.
func outcomeErrorCode(r Result) string {
	switch r.Outcome {
	case OutcomeFailed:
		return "x_api_error"
	case OutcomePartial:
		return "thread_partial_failure"
	case OutcomeRateLimited:
		return "x_rate_limited"
	default:
		return ""
	}
}
