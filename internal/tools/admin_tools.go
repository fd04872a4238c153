package tools

import (
	"context"
	"net/url"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// RawXClient is the escape-hatch surface the admin profile's universal
// x_get/x_post tools call through, grounded on §4.7's "admin: superset;
// includes universal x_get/post/put/delete".
type RawXClient interface {
	RawRequest(ctx context.Context, method, path string, query url.Values, body any) (map[string]any, error)
	GetMe(ctx context.Context) (xapi.User, error)
}

// XGetTool performs an arbitrary authenticated GET against the X API v2
// surface. Admin-profile only; requires elevated access per its manifest
// entry.
type XGetTool struct {
	client RawXClient
	env    EnvelopeContext
}

func NewXGetTool(client RawXClient, env EnvelopeContext) *XGetTool {
	return &XGetTool{client: client, env: env}
}

func (t *XGetTool) Name() string        { return "x_get" }
func (t *XGetTool) Description() string { return "Perform an arbitrary authenticated GET against the X API." }
func (t *XGetTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":  map[string]any{"type": "string"},
			"query": map[string]any{"type": "object"},
		},
		"required": []string{"path"},
	}
}
func (t *XGetTool) Entry() Entry { return entryByName(t.Name()) }

func (t *XGetTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	path, _ := params["path"].(string)
	if path == "" {
		return t.env.Fail(ErrInvalidInput, "path is required", false, 0, time.Since(start))
	}
	out, err := t.client.RawRequest(ctx, "GET", path, paramsToQuery(params["query"]), nil)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	return t.env.Success(out, time.Since(start))
}

// XPostTool performs an arbitrary authenticated mutating POST against the
// X API v2 surface, gated through the shared policy evaluator exactly like
// every other mutation tool.
type XPostTool struct {
	client    RawXClient
	evaluator *policy.Evaluator
	env       EnvelopeContext
}

func NewXPostTool(client RawXClient, evaluator *policy.Evaluator, env EnvelopeContext) *XPostTool {
	return &XPostTool{client: client, evaluator: evaluator, env: env}
}

func (t *XPostTool) Name() string        { return "x_post" }
func (t *XPostTool) Description() string { return "Perform an arbitrary authenticated POST against the X API." }
func (t *XPostTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
			"body": map[string]any{"type": "object"},
		},
		"required": []string{"path"},
	}
}
func (t *XPostTool) Entry() Entry { return entryByName(t.Name()) }

func (t *XPostTool) Execute(ctx context.Context, params map[string]any) Envelope {
	start := time.Now()
	path, _ := params["path"].(string)
	if path == "" {
		return t.env.Fail(ErrInvalidInput, "path is required", false, 0, time.Since(start))
	}

	req := policy.MutationRequest{ToolName: t.Name(), Params: params}
	decision := t.evaluator.Evaluate(ctx, req)
	switch decision.Outcome {
	case policy.Deny:
		return policyDenyEnvelope(t.env, decision, time.Since(start))
	case policy.ApprovalRequired:
		return t.env.Success(map[string]any{"routed_to_approval": true, "approval_queue_id": decision.ApprovalID}, time.Since(start))
	case policy.DryRun:
		return t.env.Success(map[string]any{"dry_run": true, "path": path}, time.Since(start))
	}

	out, err := t.client.RawRequest(ctx, "POST", path, nil, params["body"])
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	t.evaluator.Commit(ctx, req)
	return t.env.Success(out, time.Since(start))
}

// XGetMeTool fetches the authenticated account's own user object, exposed
// under the api_readonly profile.
type XGetMeTool struct {
	client RawXClient
	env    EnvelopeContext
}

func NewXGetMeTool(client RawXClient, env EnvelopeContext) *XGetMeTool {
	return &XGetMeTool{client: client, env: env}
}

func (t *XGetMeTool) Name() string        { return "x_get_me" }
func (t *XGetMeTool) Description() string { return "Fetch the authenticated account's own user object." }
func (t *XGetMeTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
func (t *XGetMeTool) Entry() Entry { return entryByName(t.Name()) }

func (t *XGetMeTool) Execute(ctx context.Context, _ map[string]any) Envelope {
	start := time.Now()
	me, err := t.client.GetMe(ctx)
	if err != nil {
		code, retryable, retryAfter := xAPIErrorCode(err)
		return t.env.Fail(code, err.Error(), retryable, retryAfter, time.Since(start))
	}
	return t.env.Success(me, time.Since(start))
}

// paramsToQuery flattens a tool params "query" object (map[string]any,
// string values only) into url.Values for RawRequest.
func paramsToQuery(v any) url.Values {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := url.Values{}
	for k, val := range m {
		if s, ok := val.(string); ok {
			out.Set(k, s)
		}
	}
	return out
}
