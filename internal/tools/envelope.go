package tools

import "time"

// Meta is the envelope's metadata block (§4.7/§6, bit-exact field set).
type Meta struct {
	ElapsedMS    int64  `json:"elapsed_ms"`
	ToolVersion  string `json:"tool_version"`
	WorkflowMode string `json:"workflow_mode"`
	ApprovalMode bool   `json:"approval_mode"`
}

// ErrorDetail is the envelope's error block, present only when
// Envelope.Success is false.
type ErrorDetail struct {
	Code         ErrorCode `json:"code"`
	Message      string    `json:"message"`
	Retryable    bool      `json:"retryable"`
	RetryAfterMS int64     `json:"retry_after_ms,omitempty"`
}

// Envelope is the uniform JSON response shape every tool returns (§4.7).
// Exactly one of Data or Error is populated, selected by Success.
type Envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    Meta         `json:"meta"`
}

// toolVersion is the envelope's schema version string (§4.7 "tool_version":
// "1.0"). Distinct from the manifest's three-way version triplet in
// manifest.go, which tracks the core/schema/spec-pack versions separately.
const toolVersion = "1.0"

// EnvelopeContext carries the process-wide fields every envelope needs that
// an individual tool's Execute doesn't know on its own: which workflow
// mode the server is running in and whether approval-mode is active.
type EnvelopeContext struct {
	WorkflowMode string // "autopilot" | "composer"
	ApprovalMode bool
}

func (ec EnvelopeContext) meta(elapsed time.Duration) Meta {
	return Meta{
		ElapsedMS:    elapsed.Milliseconds(),
		ToolVersion:  toolVersion,
		WorkflowMode: ec.WorkflowMode,
		ApprovalMode: ec.ApprovalMode,
	}
}

// Success builds a successful envelope carrying data.
func (ec EnvelopeContext) Success(data any, elapsed time.Duration) Envelope {
	return Envelope{Success: true, Data: data, Meta: ec.meta(elapsed)}
}

// Fail builds a failed envelope. retryAfter is zero when the error carries
// no retry hint.
func (ec EnvelopeContext) Fail(code ErrorCode, message string, retryable bool, retryAfter time.Duration, elapsed time.Duration) Envelope {
	return Envelope{
		Success: false,
		Error: &ErrorDetail{
			Code:         code,
			Message:      message,
			Retryable:    retryable,
			RetryAfterMS: retryAfter.Milliseconds(),
		},
		Meta: ec.meta(elapsed),
	}
}

// Valid reports whether e satisfies the envelope invariant spec.md §8
// tests directly: success present, meta.elapsed_ms present, and exactly
// one of data/error populated.
func (e Envelope) Valid() bool {
	if e.Success {
		return e.Error == nil && e.Data != nil
	}
	return e.Error != nil && e.Data == nil
}
