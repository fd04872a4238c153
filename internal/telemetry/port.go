package telemetry

import (
	"context"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/ports"
)

// PrometheusTelemetryPort adapts Metrics to ports.TelemetryPort so the loop
// engines' best-effort telemetry emission (internal/loops/record.go) lands
// in Prometheus without the loops package importing prometheus directly.
type PrometheusTelemetryPort struct {
	metrics *Metrics
}

// NewPrometheusTelemetryPort wraps an existing Metrics registry.
func NewPrometheusTelemetryPort(m *Metrics) *PrometheusTelemetryPort {
	return &PrometheusTelemetryPort{metrics: m}
}

// Emit records a TelemetryEvent as a loop-iteration observation, and also
// as a PolicyDecisionCounter sample when it carries an error code. Never
// returns an error: Prometheus recording can't fail in a way the caller
// should react to, matching the best-effort contract callers rely on.
func (p *PrometheusTelemetryPort) Emit(_ context.Context, ev ports.TelemetryEvent) error {
	elapsed := time.Duration(ev.ElapsedMS) * time.Millisecond
	p.metrics.RecordLoopIteration(ev.Name, ev.Outcome, elapsed)
	if ev.ErrorCode != "" {
		p.metrics.RecordPolicyDecision(ev.Name, ev.Outcome, ev.ErrorCode)
	}
	return nil
}
