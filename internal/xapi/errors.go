package xapi

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind enumerates the X API error taxonomy (§4.5), grounded almost 1:1 on
// internal/agent/providers/errors.go's FailoverReason/ProviderError and on
// original_source/crates/tuitbot-core/src/x_api/client.rs's
// map_error_response status-code dispatch.
type Kind string

const (
	KindRateLimited       Kind = "rate_limited"
	KindAuthExpired       Kind = "auth_expired"
	KindScopeInsufficient Kind = "scope_insufficient"
	KindForbidden         Kind = "forbidden"
	KindNetwork           Kind = "network"
	KindAPIError          Kind = "api_error"
)

// Error is the typed error returned by every xapi.Client method.
type Error struct {
	Kind Kind
	// Status is the HTTP status code, set when the error comes from an
	// HTTP response (not for Network errors or token-refresh failures).
	Status int
	// Message is a redacted, human-readable description.
	Message string
	// RetryAfter is the number of seconds the caller should wait before
	// retrying, parsed from the x-rate-limit-reset header when present.
	RetryAfter int
	// Cause is the underlying transport error, set only for KindNetwork.
	Cause error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("x api rate limited, retry after %ds", e.RetryAfter)
		}
		return "x api rate limited"
	case KindAuthExpired:
		return "x api authentication expired"
	case KindScopeInsufficient:
		return "x api scope insufficient: " + e.Message
	case KindForbidden:
		return "x api forbidden: " + e.Message
	case KindNetwork:
		return "x api network error: " + Redact(errMsg(e.Cause))
	default:
		return fmt.Sprintf("x api error (status %d): %s", e.Status, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Retryable reports whether a client may reasonably retry the request that
// produced this error, mirroring classify semantics in
// internal/agent/providers/errors.go's IsRetryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindNetwork:
		return true
	case KindAPIError:
		return e.Status >= 500
	default:
		return false
	}
}

// NewNetworkError wraps a transport-level failure.
func NewNetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Cause: cause}
}

// mapErrorResponse builds an *Error from an HTTP status code, response
// body, and parsed rate-limit headers, following
// XApiHttpClient::map_error_response's dispatch order exactly: 429 first,
// then 401, then 403-with-scope-language, then plain 403, then a generic
// ApiError for everything else.
func mapErrorResponse(status int, body string, rateInfo RateLimitInfo) *Error {
	message := Redact(strings.TrimSpace(body))

	switch {
	case status == 429:
		return &Error{Kind: KindRateLimited, Status: status, RetryAfter: rateInfo.SecondsUntilReset()}
	case status == 401:
		return &Error{Kind: KindAuthExpired, Status: status}
	case status == 403 && isScopeInsufficientMessage(message):
		return &Error{Kind: KindScopeInsufficient, Status: status, Message: message}
	case status == 403:
		return &Error{Kind: KindForbidden, Status: status, Message: message}
	default:
		return &Error{Kind: KindAPIError, Status: status, Message: message}
	}
}

func isScopeInsufficientMessage(message string) bool {
	normalized := strings.ToLower(message)
	if !strings.Contains(normalized, "scope") {
		return false
	}
	for _, kw := range []string{"insufficient", "missing", "not granted", "required"} {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

var (
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9._~+/-]+=*`)
	tokenParamPattern = regexp.MustCompile(`(?i)(access_token|client_secret|refresh_token)=[^&\s"']+`)
)

// Redact strips bearer tokens and OAuth token-bearing query parameters from
// a string before it is logged or surfaced to a caller, the same concern
// internal/agent/providers/errors.go and the Rust client's
// safety::redact::redact_secrets serve for their respective error paths.
func Redact(s string) string {
	s = bearerPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	s = tokenParamPattern.ReplaceAllStringFunc(s, func(m string) string {
		idx := strings.IndexByte(m, '=')
		if idx < 0 {
			return m
		}
		return m[:idx+1] + "[REDACTED]"
	})
	return s
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var xe *Error
	if errors.As(err, &xe) {
		return xe.Kind == kind
	}
	return false
}
