package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind classifies every failure the client returns. Callers branch on Kind,
// never on the message.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindAuth
	KindRateLimited
	KindNotFound
	KindServer
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the classified failure of one backend call.
type Error struct {
	Kind      Kind
	Retriable bool
	// Status is the HTTP status when the backend answered, else zero.
	Status  int
	Method  string
	Path    string
	Message string
	Err     error
	// retryAfter is the backend's Retry-After hint on 429.
	retryAfter time.Duration
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("backend %s %s: %s", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) notRetriable() *Error {
	e.Retriable = false
	return e
}

// KindOf returns the classification of err, or zero when err did not come
// from the client.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return 0
}

// IsRetriable reports whether err is a classified transient failure.
func IsRetriable(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Retriable
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func retriableKind(k Kind) bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

func newError(kind Kind, method, path string, status int, message string, err error) *Error {
	return &Error{
		Kind:      kind,
		Retriable: retriableKind(kind),
		Status:    status,
		Method:    method,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// classifyStatus maps a non-2xx response status to a Kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// classifyTransport maps a failed round trip to a Kind.
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
