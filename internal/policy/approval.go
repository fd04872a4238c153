package policy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tuitbot/tuitbot-core/internal/ports"
)

// ApprovalTTL is how long a queued approval remains pending before it
// expires, mirroring internal/tools/policy/approval.go's expiring-request
// bookkeeping (CleanupExpired).
const ApprovalTTL = 24 * time.Hour

func (e *Evaluator) enqueueApproval(ctx context.Context, req MutationRequest) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	ar := ports.ApprovalRequest{
		ID:        id,
		ToolName:  req.ToolName,
		Params:    req.Params,
		Status:    ports.ApprovalPending,
		CreatedAt: now,
		ExpiresAt: now.Add(ApprovalTTL),
	}
	if err := e.approvals.Enqueue(ctx, ar); err != nil {
		return "", err
	}
	return id, nil
}

// QueueForApproval places req directly onto the approval queue, bypassing
// the require_approval_for/composer-mode routing in evaluateOnce. Backs
// composite tools like propose_and_queue_replies whose entire contract is
// "draft and queue for a human", never "post directly" -- even when the
// rest of the pipeline would have allowed the mutation outright.
func (e *Evaluator) QueueForApproval(ctx context.Context, req MutationRequest) (string, error) {
	return e.enqueueApproval(ctx, req)
}

// ResolveApproval records a human decision on a previously queued approval.
// Approving does not itself re-run the mutation; callers must re-submit the
// original request through Evaluate once the approval is Approved and the
// caller has confirmed it via CheckApproval.
func (e *Evaluator) ResolveApproval(ctx context.Context, id string, approved bool, decidedBy string) error {
	status := ports.ApprovalDenied
	if approved {
		status = ports.ApprovalApproved
	}
	return e.approvals.Resolve(ctx, id, status, decidedBy)
}

// CheckApproval reports the current status of a previously queued approval.
func (e *Evaluator) CheckApproval(ctx context.Context, id string) (ports.ApprovalRequest, bool, error) {
	return e.approvals.Get(ctx, id)
}
