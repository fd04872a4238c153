package loops

import (
	"context"
	"log/slog"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/ports"
)

// recordOutcome appends a mutation-audit record and a telemetry event for
// one loop iteration. Both ports are optional and best-effort: per §4.2 the
// AuditPort/TelemetryPort contract, a write failure here logs a warning and
// never propagates to the caller.
func recordOutcome(ctx context.Context, logger *slog.Logger, audit ports.AuditPort, telemetry ports.TelemetryPort, loopName string, elapsed time.Duration, r Result) {
	if audit != nil {
		rec := ports.MutationAuditRecord{
			ToolName:   loopName,
			Decision:   string(r.Outcome),
			ResultOK:   r.Outcome == OutcomePosted,
			ResultInfo: r.Detail,
			Timestamp:  time.Now().UTC(),
		}
		if err := audit.Append(ctx, rec); err != nil && logger != nil {
			logger.Warn("failed to append mutation audit record", "loop", loopName, "error", err)
		}
	}
	if telemetry != nil {
		ev := ports.TelemetryEvent{
			Name:      loopName,
			Outcome:   string(r.Outcome),
			ElapsedMS: elapsed.Milliseconds(),
			ErrorCode: outcomeErrorCode(r),
			Timestamp: time.Now().UTC(),
		}
		if err := telemetry.Emit(ctx, ev); err != nil && logger != nil {
			logger.Warn("failed to emit telemetry event", "loop", loopName, "error", err)
		}
	}
}
