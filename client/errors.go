package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrorKind tells transport failures apart from backend rejections
type ErrorKind int

const (
	// Network means the request did not complete (connection refused, reset, DNS, ...)
	Network ErrorKind = iota + 1
	// Timeout means the per-call timeout elapsed
	Timeout
	// Canceled means the caller gave up, e.g. on Ctrl-C
	Canceled
	// Backend means the service answered with a non-2xx status
	Backend
)

func (k ErrorKind) String() string {
	switch k {
	case Network:
		return "network_error"
	case Timeout:
		return "timeout"
	case Canceled:
		return "canceled"
	case Backend:
		return "backend_error"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that fails
type Error struct {
	Kind   ErrorKind
	Status int    // HTTP status, only for Backend
	Type   string // backend error type, e.g. index_not_found_exception
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Backend:
		if e.Type != "" {
			return fmt.Sprintf("[%d] %s: %s", e.Status, e.Type, e.Reason)
		}
		return fmt.Sprintf("[%d] %s", e.Status, e.Reason)
	case Timeout:
		return fmt.Sprintf("request timed out: %s", e.Err)
	case Canceled:
		return "request canceled"
	default:
		return fmt.Sprintf("network error: %s", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorType returns a short machine-friendly kind, the backend type if there is one
func (e *Error) ErrorType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Kind.String()
}

// Retryable reports whether err is a transient failure worth repeating: network
// errors, timeouts, and overload statuses from the backend
func Retryable(err error) bool {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return false
	}
	switch cerr.Kind {
	case Network, Timeout:
		return true
	case Backend:
		switch cerr.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// IsKind reports whether err is a client error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Kind == kind
}

func classify(parent, call context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(parent.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return &Error{Kind: Canceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(call.Err(), context.DeadlineExceeded):
		return &Error{Kind: Timeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: Timeout, Err: err}
	default:
		return &Error{Kind: Network, Err: err}
	}
}

// backendError decodes {"error":{"type":..,"reason":..},"status":..}. A plain string
// error or an empty body (HEAD) falls back to the status text.
func backendError(status int, body []byte) *Error {
	e := &Error{Kind: Backend, Status: status}
	if len(body) > 0 && gjson.ValidBytes(body) {
		errField := gjson.GetBytes(body, "error")
		if errField.IsObject() {
			e.Type = errField.Get("type").String()
			e.Reason = errField.Get("reason").String()
			if e.Reason == "" {
				e.Reason = errField.Get("root_cause.0.reason").String()
			}
		} else if errField.Exists() {
			e.Reason = errField.String()
		}
	}
	if e.Reason == "" {
		e.Reason = http.StatusText(status)
	}
	return e
}
