// Package policy implements the mutation policy evaluator (§4.3): the
// allow/deny/approval-required/dry-run decision pipeline every tool call
// that mutates X state passes through, plus the idempotency shield that
// deduplicates retried calls.
package policy

import "time"

// Outcome is the sum-type tag for a Decision, per spec.md's Policy decision
// data model.
type Outcome string

const (
	// Allow means the mutation may proceed immediately.
	Allow Outcome = "allow"
	// Deny means the mutation is refused outright.
	Deny Outcome = "deny"
	// ApprovalRequired means the mutation has been queued for a human
	// decision and must not proceed until approved.
	ApprovalRequired Outcome = "approval_required"
	// DryRun means the mutation would have been allowed, but the
	// deployment is in dry-run mode so nothing is actually sent.
	DryRun Outcome = "dry_run"
)

// Decision is the evaluator's verdict on a single MutationRequest.
type Decision struct {
	Outcome Outcome
	// Reason is a short machine-readable tag identifying which check
	// produced this outcome (e.g. "blocked", "banned_phrase",
	// "quota_exceeded", "author_throttled", "mention_ratio",
	// "rate_limited", "approval_required").
	Reason string
	// Detail is a human-readable elaboration of Reason.
	Detail string
	// RetryAfter is set for quota/throttle denials that are expected to
	// clear on their own.
	RetryAfter time.Duration
	// ApprovalID is set when Outcome is ApprovalRequired.
	ApprovalID string
}

// MutationRequest is the input to the evaluator: one candidate mutation
// a loop engine or tool call wants to perform.
type MutationRequest struct {
	// ToolName is the tool surface name of the mutation (e.g.
	// "x_post_tweet", "x_reply_to_tweet"); blocked_tools, require_approval_for,
	// and the idempotency shield all key off this.
	ToolName string
	// Action is the canonical per-action-type quota key (§4.2's "post_tweet"
	// / "reply" / "thread" action types), shared between the loop engines and
	// the tool surface so both consume the same rolling-window counter for
	// the same kind of mutation. Defaults to ToolName when empty, so callers
	// that have no distinct per-type counter (like, follow, delete) can omit
	// it.
	Action string
	// Text is the content being posted, if any; checked against the
	// banned-phrase filter and the product-mention ratio.
	Text string
	// Author is the target author's user ID, for throttle/quota scoping.
	Author string
	// MentionsProduct is true when Text mentions the configured
	// product/brand.
	MentionsProduct bool
	// IdempotencyKey, if set, is used verbatim by the idempotency
	// shield instead of hashing ToolName+Params.
	IdempotencyKey string
	// Params is the raw parameter set, hashed for idempotency dedup
	// when IdempotencyKey is empty.
	Params map[string]any
}

// action resolves the quota key for req: its explicit Action when set,
// otherwise ToolName, so tools with no distinct per-type counter (like,
// follow, delete) don't need to set Action at all.
func (r MutationRequest) action() string {
	if r.Action != "" {
		return r.Action
	}
	return r.ToolName
}

func allow() Decision    { return Decision{Outcome: Allow} }
func dryRun() Decision   { return Decision{Outcome: DryRun} }
func deny(reason, detail string) Decision {
	return Decision{Outcome: Deny, Reason: reason, Detail: detail}
}
func denyRetry(reason, detail string, after time.Duration) Decision {
	return Decision{Outcome: Deny, Reason: reason, Detail: detail, RetryAfter: after}
}
func requiresApproval(approvalID, reason string) Decision {
	return Decision{Outcome: ApprovalRequired, Reason: reason, ApprovalID: approvalID}
}
