package tools

import (
	"context"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/config"
)

// GetConfigTool returns a redacted view of the running configuration,
// shared across every profile (§4.7's get_config, lane: shared).
// Secrets (client_secret, api keys) are never included.
type GetConfigTool struct {
	cfg config.Config
	env EnvelopeContext
}

func NewGetConfigTool(cfg config.Config, env EnvelopeContext) *GetConfigTool {
	return &GetConfigTool{cfg: cfg, env: env}
}

func (t *GetConfigTool) Name() string        { return "get_config" }
func (t *GetConfigTool) Description() string { return "Return the running configuration (secrets redacted)." }
func (t *GetConfigTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *GetConfigTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GetConfigTool) Execute(_ context.Context, _ map[string]any) Envelope {
	start := time.Now()
	data := map[string]any{
		"business":        t.cfg.Business,
		"x_api_provider":  t.cfg.XAPI.Provider,
		"scoring":         t.cfg.Scoring,
		"limits":          t.cfg.Limits,
		"intervals":       t.cfg.Intervals,
		"schedule":        t.cfg.Schedule,
		"targets":         t.cfg.Targets,
		"llm_provider":    t.cfg.LLM.Provider,
		"llm_model":       t.cfg.LLM.Model,
		"storage":         t.cfg.Storage,
		"logging":         t.cfg.Logging,
		"mcp_policy":      t.cfg.MCPPolicy,
		"approval_mode":   t.cfg.ApprovalMode,
		"deployment_mode": t.cfg.DeploymentMode,
	}
	return t.env.Success(data, time.Since(start))
}

// GetModeTool reports the running workflow mode and whether approval mode
// is active, the same fields stamped into every envelope's meta block.
type GetModeTool struct {
	env EnvelopeContext
}

func NewGetModeTool(env EnvelopeContext) *GetModeTool { return &GetModeTool{env: env} }

func (t *GetModeTool) Name() string        { return "get_mode" }
func (t *GetModeTool) Description() string { return "Report the current workflow mode and approval mode." }
func (t *GetModeTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *GetModeTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GetModeTool) Execute(_ context.Context, _ map[string]any) Envelope {
	start := time.Now()
	return t.env.Success(map[string]any{
		"workflow_mode": t.env.WorkflowMode,
		"approval_mode": t.env.ApprovalMode,
	}, time.Since(start))
}

// HealthChecker is satisfied by any collaborator this process depends on
// that can report liveness -- the LLM provider's health_check() contract
// (§6) and the X-API client's reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckTool reports whether the process's dependencies (X client,
// LLM provider) are reachable, shared across every profile.
type HealthCheckTool struct {
	checks map[string]HealthChecker
	env    EnvelopeContext
}

func NewHealthCheckTool(checks map[string]HealthChecker, env EnvelopeContext) *HealthCheckTool {
	return &HealthCheckTool{checks: checks, env: env}
}

func (t *HealthCheckTool) Name() string        { return "health_check" }
func (t *HealthCheckTool) Description() string { return "Report liveness of dependent services." }
func (t *HealthCheckTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *HealthCheckTool) Entry() Entry { return entryByName(t.Name()) }

func (t *HealthCheckTool) Execute(ctx context.Context, _ map[string]any) Envelope {
	start := time.Now()
	statuses := make(map[string]string, len(t.checks))
	healthy := true
	for name, checker := range t.checks {
		if err := checker.HealthCheck(ctx); err != nil {
			statuses[name] = "unhealthy: " + err.Error()
			healthy = false
			continue
		}
		statuses[name] = "ok"
	}
	return t.env.Success(map[string]any{"healthy": healthy, "checks": statuses}, time.Since(start))
}

// PolicyStatusReporter exposes the evaluator's live quota/approval state
// for the get_policy_status tool, without handing the tool the evaluator's
// mutation-side methods.
type PolicyStatusReporter interface {
	MutationsRemainingThisHour() int
	PendingApprovalCount(ctx context.Context) (int, error)
}

// GetPolicyStatusTool reports the current policy-evaluator state: quota
// headroom and pending-approval count, for operators inspecting why a
// mutation was denied or queued.
type GetPolicyStatusTool struct {
	reporter PolicyStatusReporter
	env      EnvelopeContext
}

func NewGetPolicyStatusTool(reporter PolicyStatusReporter, env EnvelopeContext) *GetPolicyStatusTool {
	return &GetPolicyStatusTool{reporter: reporter, env: env}
}

func (t *GetPolicyStatusTool) Name() string        { return "get_policy_status" }
func (t *GetPolicyStatusTool) Description() string { return "Report quota headroom and pending approval count." }
func (t *GetPolicyStatusTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *GetPolicyStatusTool) Entry() Entry { return entryByName(t.Name()) }

func (t *GetPolicyStatusTool) Execute(ctx context.Context, _ map[string]any) Envelope {
	start := time.Now()
	pending, err := t.reporter.PendingApprovalCount(ctx)
	if err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	return t.env.Success(map[string]any{
		"mutations_remaining_this_hour": t.reporter.MutationsRemainingThisHour(),
		"pending_approvals":             pending,
	}, time.Since(start))
}
