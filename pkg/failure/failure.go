// Package failure defines the typed errors surfaced by the SDK. Every error
// is a *Error carrying a Kind discriminant, so callers can switch on the kind
// instead of relying on a type hierarchy:
//
//	var fe *failure.Error
//	if errors.As(err, &fe) {
//		switch fe.Kind {
//		case failure.KindTimeout:
//			// fe.Timeout holds the deadline that was hit
//		case failure.KindRetryExhausted:
//			// fe.Attempts, fe.Err (last failure), fe.History
//		}
//	}
//
// The network family (Network, Timeout, Connection, RetryExhausted,
// ResponseInvalid, HTTPStatus) mirrors the failures of outbound calls. The
// remaining kinds report local misconfiguration.
package failure

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the failure variants.
type Kind string

const (
	KindNetwork            Kind = "network"
	KindTimeout            Kind = "timeout"
	KindConnection         Kind = "connection"
	KindRetryExhausted     Kind = "retry_exhausted"
	KindResponseInvalid    Kind = "response_invalid"
	KindHTTPStatus         Kind = "http_status"
	KindAPIKeyMissing      Kind = "api_key_missing"
	KindSecretValueMissing Kind = "secret_value_missing"
	KindInvalidInput       Kind = "invalid_input"
	KindNotImplemented     Kind = "not_implemented"
)

// Error is the single error type of the SDK. Only the fields relevant to
// Kind are populated.
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "chat", "get_models").
	Op  string
	Msg string

	// Host is set for KindConnection.
	Host string
	// Timeout is set for KindTimeout.
	Timeout time.Duration
	// StatusCode and Body are set for KindHTTPStatus.
	StatusCode int
	Body       []byte
	// Response holds the offending payload for KindResponseInvalid.
	Response any
	// Variable names the missing setting for KindSecretValueMissing.
	Variable string

	// Attempts and History are set for KindRetryExhausted. Err is then the
	// last failure.
	Attempts int
	History  []error

	Err error
}

const prefix = "Secret AI SDK Error: "

func (e *Error) Error() string {
	return prefix + e.message()
}

func (e *Error) message() string {
	switch e.Kind {
	case KindTimeout:
		op := e.Op
		if op == "" {
			op = "Request"
		}
		if errors.Is(e.Err, context.Canceled) {
			return op + " was canceled"
		}
		return fmt.Sprintf("%s timed out after %.1f seconds", op, e.Timeout.Seconds())
	case KindConnection:
		if e.Err != nil {
			return fmt.Sprintf("Failed to connect to %s: %v", e.Host, e.Err)
		}
		return "Failed to connect to " + e.Host
	case KindRetryExhausted:
		if e.Err != nil {
			return fmt.Sprintf("All %d retry attempts failed. Last error: %v", e.Attempts, e.Err)
		}
		return fmt.Sprintf("All %d retry attempts failed", e.Attempts)
	case KindResponseInvalid:
		return "Invalid response: " + e.Msg
	case KindHTTPStatus:
		if len(e.Body) > 0 {
			return fmt.Sprintf("Network error: HTTP %d: %s", e.StatusCode, truncate(e.Body, 256))
		}
		return fmt.Sprintf("Network error: HTTP %d", e.StatusCode)
	case KindAPIKeyMissing:
		return "Missing API Key. Environment variable " + e.Variable + " must be set"
	case KindSecretValueMissing:
		return "Missing environment variable " + e.Variable + " must be set"
	case KindInvalidInput:
		if e.Msg == "" {
			return "Invalid value"
		}
		return "Invalid value: " + e.Msg
	case KindNotImplemented:
		return "Not implemented"
	default:
		msg := e.Msg
		if msg == "" && e.Err != nil {
			msg = e.Err.Error()
		}
		return "Network error: " + msg
	}
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Whether a failure is retried is decided by package retry, not here.

// Network wraps a generic outbound failure.
func Network(op, msg string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Msg: msg, Err: err}
}

// Timeout reports that op did not finish within d.
func Timeout(op string, d time.Duration, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Timeout: d, Err: err}
}

// Connection reports that host could not be reached.
func Connection(host string, err error) *Error {
	return &Error{Kind: KindConnection, Host: host, Err: err}
}

// Response reports a payload that failed validation.
func Response(msg string, payload any) *Error {
	return &Error{Kind: KindResponseInvalid, Msg: msg, Response: payload}
}

// Status reports a non-success HTTP status.
func Status(code int, body []byte) *Error {
	return &Error{Kind: KindHTTPStatus, StatusCode: code, Body: body}
}

// Exhausted reports that every permitted attempt failed. last is the final
// failure; history holds one entry per attempt in order.
func Exhausted(attempts int, last error, history []error) *Error {
	return &Error{Kind: KindRetryExhausted, Attempts: attempts, Err: last, History: history}
}

// APIKeyMissing reports an absent API key; envVar is the variable that would
// have supplied it.
func APIKeyMissing(envVar string) *Error {
	return &Error{Kind: KindAPIKeyMissing, Variable: envVar}
}

// SecretValueMissing reports an absent Secret Network setting.
func SecretValueMissing(envVar string) *Error {
	return &Error{Kind: KindSecretValueMissing, Variable: envVar}
}

// InvalidInput reports a caller-supplied value that cannot be used.
func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Msg: msg}
}

// NotImplemented reports an API that the server side does not offer yet.
func NotImplemented(op string) *Error {
	return &Error{Kind: KindNotImplemented, Op: op}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "" when
// err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether any *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == k {
			return true
		}
		err = fe.Err
	}
	return false
}

// IsNetwork reports whether err belongs to the network family.
func IsNetwork(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindConnection, KindRetryExhausted, KindResponseInvalid, KindHTTPStatus:
		return true
	}
	return false
}

// StatusCode returns the HTTP status carried anywhere in err's chain, or 0.
func StatusCode(err error) int {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return 0
		}
		if fe.Kind == KindHTTPStatus {
			return fe.StatusCode
		}
		err = fe.Err
	}
	return 0
}

// AttemptError stamps a single attempt's failure with its 1-based index and
// the time the attempt took. It is transparent to errors.Is, errors.As and
// KindOf.
type AttemptError struct {
	Attempt int
	Elapsed time.Duration
	Err     error
}

// WithAttempt wraps err with attempt context. A nil err stays nil.
func WithAttempt(err error, attempt int, elapsed time.Duration) error {
	if err == nil {
		return nil
	}
	return &AttemptError{Attempt: attempt, Elapsed: elapsed, Err: err}
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("attempt %d (%s): %v", e.Attempt, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
