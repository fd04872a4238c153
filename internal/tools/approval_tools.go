package tools

import (
	"context"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
)

// approvalEntry renders an ApprovalRequest the way the envelope's data
// block presents it, avoiding a direct ports.ApprovalRequest leak into the
// public JSON shape.
func approvalEntry(a ports.ApprovalRequest) map[string]any {
	return map[string]any{
		"id":         a.ID,
		"tool_name":  a.ToolName,
		"status":     string(a.Status),
		"created_at": a.CreatedAt,
		"expires_at": a.ExpiresAt,
	}
}

// ApproveItemTool approves a queued mutation, per §4.7's approve_item.
// Approving does not itself re-run the mutation -- it only flips the
// queue entry's status; the original caller is expected to resubmit once
// approved (§4.4's ResolveApproval doc comment).
type ApproveItemTool struct {
	evaluator *policy.Evaluator
	env       EnvelopeContext
}

func NewApproveItemTool(evaluator *policy.Evaluator, env EnvelopeContext) *ApproveItemTool {
	return &ApproveItemTool{evaluator: evaluator, env: env}
}

func (t *ApproveItemTool) Name() string        { return "approve_item" }
func (t *ApproveItemTool) Description() string { return "Approve a queued mutation." }
func (t *ApproveItemTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []string{"id"},
	}
}
func (t *ApproveItemTool) Entry() Entry { return entryByName(t.Name()) }

func (t *ApproveItemTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	id, _ := params["id"].(string)
	if id == "" {
		return t.env.Fail(ErrInvalidInput, "id is required", false, 0, time.Since(start))
	}
	existing, ok, err := t.evaluator.CheckApproval(ctx, id)
	if err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	// A second approve_item(id) on an already-resolved entry is a
	// not_found, not a silent no-op re-approval (§8's round-trip law).
	if !ok || existing.Status != ports.ApprovalPending {
		return t.env.Fail(ErrNotFound, "no such pending approval: "+id, false, 0, time.Since(start))
	}
	if err := t.evaluator.ResolveApproval(ctx, id, true, "user"); err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	return t.env.Success(map[string]any{"id": id, "status": "approved"}, time.Since(start))
}

// RejectItemTool denies a queued mutation, per §4.7's reject_item.
type RejectItemTool struct {
	evaluator *policy.Evaluator
	env       EnvelopeContext
}

func NewRejectItemTool(evaluator *policy.Evaluator, env EnvelopeContext) *RejectItemTool {
	return &RejectItemTool{evaluator: evaluator, env: env}
}

func (t *RejectItemTool) Name() string        { return "reject_item" }
func (t *RejectItemTool) Description() string { return "Reject a queued mutation." }
func (t *RejectItemTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "string"}},
		"required":   []string{"id"},
	}
}
func (t *RejectItemTool) Entry() Entry { return entryByName(t.Name()) }

func (t *RejectItemTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	id, _ := params["id"].(string)
	if id == "" {
		return t.env.Fail(ErrInvalidInput, "id is required", false, 0, time.Since(start))
	}
	existing, ok, err := t.evaluator.CheckApproval(ctx, id)
	if err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	if !ok || existing.Status != ports.ApprovalPending {
		return t.env.Fail(ErrNotFound, "no such pending approval: "+id, false, 0, time.Since(start))
	}
	if err := t.evaluator.ResolveApproval(ctx, id, false, "user"); err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	return t.env.Success(map[string]any{"id": id, "status": "denied"}, time.Since(start))
}

// ListPendingApprovalsTool lists every approval still awaiting a human
// decision, FIFO by insertion time per §4.2's ApprovalQueuePort contract.
type ListPendingApprovalsTool struct {
	approvals ports.ApprovalQueuePort
	env       EnvelopeContext
}

func NewListPendingApprovalsTool(approvals ports.ApprovalQueuePort, env EnvelopeContext) *ListPendingApprovalsTool {
	return &ListPendingApprovalsTool{approvals: approvals, env: env}
}

func (t *ListPendingApprovalsTool) Name() string        { return "list_pending_approvals" }
func (t *ListPendingApprovalsTool) Description() string { return "List mutations awaiting approval." }
func (t *ListPendingApprovalsTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *ListPendingApprovalsTool) Entry() Entry { return entryByName(t.Name()) }

func (t *ListPendingApprovalsTool) Execute(ctx context.Context, _ map[string]any) Envelope {
	start := time.Now()
	pending, err := t.approvals.ListPending(ctx)
	if err != nil {
		return t.env.Fail(ErrDBError, err.Error(), true, 0, time.Since(start))
	}
	out := make([]map[string]any, 0, len(pending))
	for _, a := range pending {
		out = append(out, approvalEntry(a))
	}
	return t.env.Success(map[string]any{"items": out}, time.Since(start))
}
