package tools

import (
	"context"
	"sync"
	"time"

	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/telemetry"
)

// MaxParamsSize is the JSON parameter-payload limit carried over from
// internal/agent/tool_registry.go (there: MaxToolParamsSize, 10MB).
// Registry.Execute does not check params against it.
const MaxParamsSize = 10 << 20

// Registry manages the set of available tools with thread-safe
// registration and lookup, grounded on
// internal/agent/tool_registry.go's ToolRegistry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	metrics   *telemetry.Metrics
	telemetry ports.TelemetryPort
	env       EnvelopeContext
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics wires Prometheus recording into every Execute call.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTelemetryPort wires raw telemetry-event emission (§4.7 "Telemetry").
func WithTelemetryPort(tp ports.TelemetryPort) Option {
	return func(r *Registry) { r.telemetry = tp }
}

// WithEnvelopeContext sets the workflow_mode/approval_mode fields stamped
// into every envelope's meta block.
func WithEnvelopeContext(ec EnvelopeContext) Option {
	return func(r *Registry) { r.env = ec }
}

// NewRegistry builds an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, replacing any existing tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every registered tool, unordered.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Execute runs a tool by name, recording telemetry before returning
// regardless of outcome (§4.7 "Telemetry": "Before returning, each tool
// records a telemetry tuple").
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) Envelope {
	start := time.Now()

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		env := r.env.Fail(ErrNotFound, "tool not found: "+name, false, 0, time.Since(start))
		r.record(ctx, name, env, time.Since(start))
		return env
	}

	env := tool.Execute(ctx, params)
	r.record(ctx, name, env, time.Since(start))
	return env
}

func (r *Registry) record(ctx context.Context, name string, env Envelope, elapsed time.Duration) {
	outcome := "success"
	errorCode := ""
	if !env.Success && env.Error != nil {
		outcome = "error"
		errorCode = string(env.Error.Code)
	}
	if r.metrics != nil {
		r.metrics.RecordToolCall(name, outcome, elapsed)
	}
	if r.telemetry != nil {
		_ = r.telemetry.Emit(ctx, ports.TelemetryEvent{
			Name:      name,
			Outcome:   outcome,
			ElapsedMS: elapsed.Milliseconds(),
			ErrorCode: errorCode,
			Timestamp: time.Now(),
		})
	}
}
