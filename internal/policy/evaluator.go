package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
)

// Option configures an Evaluator, following the functional-option pattern
// used throughout the corpus (internal/cron.Scheduler, internal/auth).
type Option func(*Evaluator)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = logger }
}

// WithDryRun forces every mutation that passes the blocked-tools and safety
// checks to report DryRun instead, except on the enforce_for_mutations
// fast path.
func WithDryRun(dryRun bool) Option {
	return func(e *Evaluator) { e.dryRun = dryRun }
}

// WithApprovalRequiredTools marks tool names that must always be routed
// through the approval queue rather than executed directly.
func WithApprovalRequiredTools(names ...string) Option {
	return func(e *Evaluator) {
		for _, n := range names {
			e.approvalRequired[n] = true
		}
	}
}

// WithMaxMentionRatio sets the ceiling on the trailing product-mention
// ratio before self-promotional posts start getting denied.
func WithMaxMentionRatio(ratio float64) Option {
	return func(e *Evaluator) { e.maxMentionRatio = ratio }
}

// WithBlockedTools marks mutation names that are always denied outright
// (§4.3's blocked_tools, step 2 of the decision algorithm -- beats
// everything except the enforce_for_mutations fast path).
func WithBlockedTools(names ...string) Option {
	return func(e *Evaluator) {
		for _, n := range names {
			e.blockedTools[n] = true
		}
	}
}

// WithEnforceForMutations sets the master switch (§4.3's
// enforce_for_mutations). When false and the operating mode is not
// composer, the blocked-tools, dry-run, global rate-limit and approval
// steps are skipped: a mutation that passes the banned-phrase, quota,
// throttle and ratio checks is allowed and still spends its
// quota/throttle/ratio tracking -- the "local development" fast path.
// Defaults to true.
func WithEnforceForMutations(enforce bool) Option {
	return func(e *Evaluator) { e.enforceForMutations = enforce }
}

// WithOperatingMode sets autopilot (default) or composer. Composer forces
// every mutation, even ones not named in require_approval_for, into
// approval routing (§4.3 step 5).
func WithOperatingMode(mode string) Option {
	return func(e *Evaluator) { e.operatingMode = mode }
}

// WithDryRunMutations sets the mcp_policy.dry_run_mutations master switch
// (§4.3 step 3): every mutation short-circuits to DryRun. It is the same
// switch as WithDryRun: both set the evaluator's single dryRun field.
func WithDryRunMutations(dryRun bool) Option {
	return WithDryRun(dryRun)
}

// WithMaxMutationsPerHour configures the global mcp-mutation rolling
// counter (§4.3 step 4 / §4.2's "mcp-mutation" action type). A value of 0
// leaves the counter unconfigured (unbounded).
func WithMaxMutationsPerHour(max int) Option {
	return func(e *Evaluator) {
		if max > 0 && e.quota != nil {
			e.quota.Configure(globalMutationAction, safety.Window{
				Name: "hourly", Duration: time.Hour, Limit: max,
			})
		}
	}
}

// globalMutationAction is the quota-store key for the mcp_policy-wide
// max_mutations_per_hour counter, kept separate from each mutation's own
// per-action-type counter (e.g. "post_tweet", "reply") so the two never
// collide.
const globalMutationAction = "mcp-mutation"

// ComposerMode is the operating_mode value that forces every mutation into
// approval routing (§4.3's operating_mode enum).
const ComposerMode = "composer"

// Evaluator runs the ordered safety/policy pipeline: blocked tools, banned
// phrase, quota, author throttle, product-mention ratio, then (unless the
// enforce_for_mutations fast path allows the mutation) dry-run, the global
// mutation rate limit, and the approval-required tool list. Grounded on
// internal/tools/policy/resolver.go's Decide/effectivePolicyForTool ordered
// rule resolution, generalized from tool-name allow/deny matching to a
// richer mutation-request pipeline.
type Evaluator struct {
	logger *slog.Logger

	banned   *safety.BannedPhraseFilter
	quota    *safety.QuotaStore
	throttle *safety.AuthorThrottle
	ratio    *safety.ProductMentionTracker

	maxMentionRatio  float64
	approvalRequired map[string]bool
	approvals        ports.ApprovalQueuePort
	dryRun           bool

	blockedTools        map[string]bool
	enforceForMutations bool
	operatingMode       string

	quotaAudit ports.QuotaPort
	idempotent *IdempotencyShield
}

// WithIdempotencyShield wires the 30-second duplicate-request dedup
// (§4.3 "Idempotency shield") in front of the rest of the decision
// pipeline: a repeat (name, params) pair within the window short-circuits
// to deny(validation_error) before step 1 ever runs.
func WithIdempotencyShield(s *IdempotencyShield) Option {
	return func(e *Evaluator) { e.idempotent = s }
}

// WithQuotaAudit wires a durable QuotaPort that every committed mutation is
// fire-and-forget persisted to, so quota usage survives process restarts
// for inspection even though the live rolling-window counters
// (internal/safety.QuotaStore) are in-memory only -- the same
// best-effort-persistence split internal/loops/record.go draws between its
// live Result and the AuditPort trail.
func WithQuotaAudit(q ports.QuotaPort) Option {
	return func(e *Evaluator) { e.quotaAudit = q }
}

// NewEvaluator builds an Evaluator over the given safety primitives.
func NewEvaluator(
	banned *safety.BannedPhraseFilter,
	quota *safety.QuotaStore,
	throttle *safety.AuthorThrottle,
	ratio *safety.ProductMentionTracker,
	approvals ports.ApprovalQueuePort,
	opts ...Option,
) *Evaluator {
	e := &Evaluator{
		logger:           slog.Default().With("component", "policy.evaluator"),
		banned:           banned,
		quota:            quota,
		throttle:         throttle,
		ratio:            ratio,
		approvalRequired: make(map[string]bool),
		approvals:        approvals,
		maxMentionRatio:  1.0,

		blockedTools:        make(map[string]bool),
		enforceForMutations: true,
		operatingMode:       "autopilot",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs req through the full decision pipeline and returns the
// verdict. An Allow verdict has already spent the action's
// quota/throttle/ratio tracking (recordSafety); Commit, called after the
// mutation succeeds, only adds the durable QuotaPort record.
func (e *Evaluator) Evaluate(ctx context.Context, req MutationRequest) Decision {
	if e.idempotent != nil {
		return e.idempotent.Evaluate(ctx, req, e.evaluateOnce)
	}
	return e.evaluateOnce(ctx, req)
}

// evaluateOnce runs the ordered §4.3 decision steps (2 through 6) once,
// without the idempotency shield's dedup wrapper.
func (e *Evaluator) evaluateOnce(ctx context.Context, req MutationRequest) Decision {
	composer := e.operatingMode == ComposerMode

	// Step 1: the enforce_for_mutations fast path. Banned-phrase/quota/
	// throttle/ratio are the §4.4 safety layer, not the §4.3 policy
	// switch, so they still apply even with enforcement off -- only the
	// blocked/dry-run/rate-limit/approval machinery below is bypassed.
	skipPolicyChecks := !e.enforceForMutations && !composer

	if !skipPolicyChecks && e.blockedTools[req.ToolName] {
		return deny("blocked", "mutation is in the blocked_tools list")
	}

	if e.banned != nil && req.Text != "" {
		if phrase, matched := e.banned.Check(req.Text); matched {
			return deny("banned_phrase", "text contains banned phrase: "+phrase)
		}
	}

	if e.quota != nil {
		if allowed, w := e.quota.Allow(req.action()); !allowed {
			return denyRetry("quota_exceeded", "quota window "+w.Name+" exhausted", w.Duration)
		}
	}

	if e.throttle != nil && req.Author != "" {
		if !e.throttle.Allow(req.Author) {
			return deny("author_throttled", "author already engaged within throttle window")
		}
	}

	if e.ratio != nil && req.MentionsProduct {
		if e.ratio.WouldExceed(e.maxMentionRatio) {
			return deny("mention_ratio", "product-mention ratio would exceed configured ceiling")
		}
	}

	if skipPolicyChecks {
		e.recordSafety(req)
		return allow()
	}

	if e.dryRun {
		return dryRun()
	}

	if e.quota != nil {
		if allowed, w := e.quota.Allow(globalMutationAction); !allowed {
			return denyRetry("rate_limited", "global mutation rate limit exhausted", w.Duration)
		}
	}

	if composer || e.approvalRequired[req.ToolName] {
		if e.approvals == nil {
			return deny("approval_required", "tool requires approval but no approval queue is configured")
		}
		id, err := e.enqueueApproval(ctx, req)
		if err != nil {
			e.logger.Error("failed to enqueue approval", "error", err, "tool", req.ToolName)
			return deny("approval_required", "failed to enqueue approval request")
		}
		// §4.3's "why this ordering": rate-limit is checked (and spent)
		// before approval routing so a flood of approval requests can't
		// outrun max_mutations_per_hour -- only the global counter, not
		// the per-action-type one, since the mutation itself hasn't run.
		if e.quota != nil {
			e.quota.Record(globalMutationAction)
		}
		return requiresApproval(id, "approval_required")
	}

	e.recordSafety(req)
	return allow()
}

// recordSafety spends one unit of quota/throttle/ratio tracking for an
// allowed mutation. Invariant 2 (spec §8) requires this happen at the
// moment a mutation is allowed through, not after the downstream post
// succeeds: a request that's allowed but whose X-API call later fails
// must leave the counter consumed, never refunded.
func (e *Evaluator) recordSafety(req MutationRequest) {
	if e.quota != nil {
		e.quota.Record(req.action())
		e.quota.Record(globalMutationAction)
	}
	if e.throttle != nil && req.Author != "" {
		e.throttle.Record(req.Author)
	}
	if e.ratio != nil {
		e.ratio.Record(req.MentionsProduct)
	}
}

// Commit persists a durable audit trail entry for a mutation that actually
// executed. Quota/throttle/ratio accounting already happened inside
// Evaluate at the moment the decision was made (see recordSafety); this
// only covers the best-effort durable QuotaPort mirror.
func (e *Evaluator) Commit(ctx context.Context, req MutationRequest) {
	if e.quotaAudit != nil {
		now := time.Now().UTC()
		if err := e.quotaAudit.Record(ctx, ports.QuotaRecord{Action: req.ToolName, Author: req.Author, Timestamp: now}); err != nil {
			e.logger.Warn("failed to persist quota record", "error", err, "tool", req.ToolName)
		}
	}
}

// MutationsRemainingThisHour reports how much headroom is left on the
// global mcp-mutation counter (-1 when max_mutations_per_hour was never
// configured, i.e. unbounded), for the get_policy_status tool.
func (e *Evaluator) MutationsRemainingThisHour() int {
	if e.quota == nil {
		return -1
	}
	return e.quota.Remaining(globalMutationAction)
}

// PendingApprovalCount reports how many mutations currently sit in the
// approval queue, for the get_policy_status tool.
func (e *Evaluator) PendingApprovalCount(ctx context.Context) (int, error) {
	if e.approvals == nil {
		return 0, nil
	}
	pending, err := e.approvals.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}
