package api

import (
	"errors"
	"net/http"
)

// Kind classifies a client error by its origin, so callers can branch on
// the failure class instead of parsing message text.
type Kind int

// Error kinds.
const (
	// KindValidation marks input rejected locally, before any network call.
	KindValidation Kind = iota + 1
	// KindAuth marks a missing or rejected bearer token.
	KindAuth
	// KindTransport marks a network failure or a non-success HTTP status.
	KindTransport
	// KindTimeout marks a poll horizon elapsing with no terminal status.
	KindTimeout
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing the client boundary. Message is
// the server-supplied error text or a generic fallback; StatusCode is zero
// for errors raised before or without an HTTP response.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	return e.Message
}

// Sentinel client errors. These are matched with errors.Is even when
// wrapped, so their identity must stay stable.
var (
	// ErrNotAuthenticated is returned when an operation requiring auth is
	// attempted without a stored token.
	ErrNotAuthenticated = &Error{Kind: KindAuth, Message: "未登录"}

	// ErrPollTimeout is returned by the task poller when the configured
	// horizon elapses before a terminal status is observed.
	ErrPollTimeout = &Error{Kind: KindTimeout, Message: "任务处理超时"}
)

// Generic fallback messages used when the server supplies no error text.
const (
	fallbackRequestFailed = "请求失败"
)

// IsKind reports whether err or any error it wraps is a client Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var clientErr *Error
	if !errors.As(err, &clientErr) {
		return false
	}

	return clientErr.Kind == kind
}

// errorFromStatus builds a client Error for a non-success HTTP response.
// Unauthorized responses are classified as auth failures; every other
// status is a transport failure distinguishable only by message and code.
func errorFromStatus(statusCode int, message string) *Error {
	if message == "" {
		message = fallbackRequestFailed
	}

	kind := KindTransport
	if statusCode == http.StatusUnauthorized {
		kind = KindAuth
	}

	return &Error{
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
	}
}
