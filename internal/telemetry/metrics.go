// Package telemetry exposes the Prometheus metrics surface for tool calls,
// loop iterations, and policy decisions (spec §7's "best-effort audit and
// telemetry" requirement). Grounded on internal/observability/metrics.go's
// promauto-built Metrics struct, narrowed to the bounded-cardinality labels
// this domain actually has: tool/loop name, outcome, and error code. The
// teacher's chat/session/LLM-cost gauges have no referent here and are
// dropped rather than carried forward unused.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide metrics registry. Construct one with
// NewMetrics at startup; cmd/tuitbotd passes it to the tool registry
// (tools.WithMetrics) and wraps it in a PrometheusTelemetryPort for
// telemetry events.
type Metrics struct {
	// ToolCallCounter counts tool executions by tool name and outcome
	// (success|error).
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool execution latency in seconds.
	// Buckets favor the sub-second-to-tens-of-seconds range a single
	// X-API round trip or LLM completion falls into.
	ToolCallDuration *prometheus.HistogramVec

	// LoopIterationCounter counts loop iterations by loop name and
	// outcome (the loops.Outcome string constants).
	LoopIterationCounter *prometheus.CounterVec

	// LoopIterationDuration measures the wall-clock time of a single
	// loop iteration.
	LoopIterationDuration *prometheus.HistogramVec

	// PolicyDecisionCounter counts samples by name, outcome, and reason.
	// Its only writer is PrometheusTelemetryPort.Emit, which records a
	// telemetry event's name, outcome, and error code here when the error
	// code is set; the policy evaluator does not record into it.
	PolicyDecisionCounter *prometheus.CounterVec
}

// NewMetrics builds and registers the metrics with Prometheus's default
// registry. Call once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tuitbot_tool_calls_total",
				Help: "Total number of tool calls by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),
		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tuitbot_tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		LoopIterationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tuitbot_loop_iterations_total",
				Help: "Total number of loop iterations by loop name and outcome",
			},
			[]string{"loop_name", "outcome"},
		),
		LoopIterationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tuitbot_loop_iteration_duration_seconds",
				Help:    "Duration of a single loop iteration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"loop_name"},
		),
		PolicyDecisionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tuitbot_policy_decisions_total",
				Help: "Total number of policy evaluator decisions by tool name, outcome, and reason",
			},
			[]string{"tool_name", "outcome", "reason"},
		),
	}
}

// RecordToolCall records a completed tool execution.
func (m *Metrics) RecordToolCall(toolName, outcome string, elapsed time.Duration) {
	m.ToolCallCounter.WithLabelValues(toolName, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(toolName).Observe(elapsed.Seconds())
}

// RecordLoopIteration records one pass of a loop engine's RunOnce.
func (m *Metrics) RecordLoopIteration(loopName, outcome string, elapsed time.Duration) {
	m.LoopIterationCounter.WithLabelValues(loopName, outcome).Inc()
	m.LoopIterationDuration.WithLabelValues(loopName).Observe(elapsed.Seconds())
}

// RecordPolicyDecision increments PolicyDecisionCounter for one
// (toolName, outcome, reason) sample.
func (m *Metrics) RecordPolicyDecision(toolName, outcome, reason string) {
	m.PolicyDecisionCounter.WithLabelValues(toolName, outcome, reason).Inc()
}
