package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
)

// Class is the classification of one attempt.
type Class int

const (
	// Succeeded marks an attempt that returned no error.
	Succeeded Class = iota
	// Retryable marks a transient failure eligible for another attempt.
	Retryable
	// Terminal marks a failure that is surfaced immediately.
	Terminal
)

func (c Class) String() string {
	switch c {
	case Succeeded:
		return "succeeded"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Classifier decides whether a failed attempt may be retried.
type Classifier func(err error) Class

// Classify applies the SDK's fixed classification table:
//
//	connection refused, DNS failure, socket timeout  retryable
//	HTTP 502, 503, 504                               retryable
//	response failing format validation               terminal
//	HTTP 400, 401, 403                               terminal
//	anything else                                    terminal
func Classify(err error) Class {
	if err == nil {
		return Succeeded
	}

	var fe *failure.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case failure.KindTimeout, failure.KindConnection:
			if errors.Is(fe.Err, context.Canceled) {
				return Terminal
			}
			return Retryable
		case failure.KindHTTPStatus:
			return classifyStatus(fe.StatusCode)
		case failure.KindNetwork:
			// A generic network error is only as retryable as its cause.
			if fe.Err == nil {
				return Terminal
			}
			return Classify(fe.Err)
		default:
			return Terminal
		}
	}

	if errors.Is(err, context.Canceled) {
		return Terminal
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Retryable
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Retryable
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	return Terminal
}

func classifyStatus(code int) Class {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Retryable
	default:
		return Terminal
	}
}
