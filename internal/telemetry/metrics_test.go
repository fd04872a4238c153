package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tuitbot/tuitbot-core/internal/ports"
)

// newIsolatedMetrics builds a Metrics struct registered against a private
// registry rather than prometheus.DefaultRegisterer, so tests don't
// collide with each other or with NewMetrics() called elsewhere.
func newIsolatedMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		ToolCallCounter: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_tool_calls_total", Help: "test"},
			[]string{"tool_name", "outcome"},
		),
		ToolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_tool_call_duration_seconds", Help: "test", Buckets: prometheus.DefBuckets},
			[]string{"tool_name"},
		),
		LoopIterationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_loop_iterations_total", Help: "test"},
			[]string{"loop_name", "outcome"},
		),
		LoopIterationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: "test_loop_iteration_duration_seconds", Help: "test", Buckets: prometheus.DefBuckets},
			[]string{"loop_name"},
		),
		PolicyDecisionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "test_policy_decisions_total", Help: "test"},
			[]string{"tool_name", "outcome", "reason"},
		),
	}, reg
}

func TestRecordToolCall(t *testing.T) {
	m, _ := newIsolatedMetrics(t)
	m.RecordToolCall("post_tweet", "success", 250*time.Millisecond)
	m.RecordToolCall("post_tweet", "success", 300*time.Millisecond)
	m.RecordToolCall("post_tweet", "error", 10*time.Millisecond)

	if count := testutil.CollectAndCount(m.ToolCallCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
	expected := `
		# HELP test_tool_calls_total test
		# TYPE test_tool_calls_total counter
		test_tool_calls_total{outcome="error",tool_name="post_tweet"} 1
		test_tool_calls_total{outcome="success",tool_name="post_tweet"} 2
	`
	if err := testutil.CollectAndCompare(m.ToolCallCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestRecordLoopIteration(t *testing.T) {
	m, _ := newIsolatedMetrics(t)
	m.RecordLoopIteration("content", "posted", time.Second)
	m.RecordLoopIteration("content", "too_soon", time.Millisecond)

	if count := testutil.CollectAndCount(m.LoopIterationCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRecordPolicyDecision(t *testing.T) {
	m, _ := newIsolatedMetrics(t)
	m.RecordPolicyDecision("reply", "deny", "banned_phrase")
	m.RecordPolicyDecision("reply", "deny", "banned_phrase")

	expected := `
		# HELP test_policy_decisions_total test
		# TYPE test_policy_decisions_total counter
		test_policy_decisions_total{outcome="deny",reason="banned_phrase",tool_name="reply"} 2
	`
	if err := testutil.CollectAndCompare(m.PolicyDecisionCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
}

func TestPrometheusTelemetryPortEmit(t *testing.T) {
	m, _ := newIsolatedMetrics(t)
	port := NewPrometheusTelemetryPort(m)

	err := port.Emit(context.Background(), ports.TelemetryEvent{
		Name:      "mentions",
		Outcome:   "posted",
		ElapsedMS: 1500,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := testutil.CollectAndCount(m.LoopIterationCounter); count != 1 {
		t.Errorf("expected 1 label combination, got %d", count)
	}
}

func TestPrometheusTelemetryPortEmitWithErrorCode(t *testing.T) {
	m, _ := newIsolatedMetrics(t)
	port := NewPrometheusTelemetryPort(m)

	err := port.Emit(context.Background(), ports.TelemetryEvent{
		Name:      "discovery",
		Outcome:   "failed",
		ElapsedMS: 40,
		ErrorCode: "api_error",
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := testutil.CollectAndCount(m.PolicyDecisionCounter); count != 1 {
		t.Errorf("expected 1 label combination, got %d", count)
	}
}
