package stackexchange

import (
	"context"
	"errors"
	"fmt"
)

// ThrottleViolation is the error_id the API returns when a client exceeds its
// request rate. It is expected under load and retried quietly.
const ThrottleViolation = 502

// TransportError wraps connection-level failures (DNS, reset, client timeout).
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response body that is not the expected JSON envelope.
type DecodeError struct {
	Path   string
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (status %d): %v", e.Path, e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// APIError is an error reported by the API. ID is the payload error_id and
// is zero when only the HTTP status signaled the failure.
type APIError struct {
	Path    string
	Status  int
	ID      int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("api error: HTTP %d (%s) on %s: %s", e.Status, e.Name, e.Path, e.Message)
	}
	return fmt.Sprintf("api error %d (%s) on %s: %s", e.ID, e.Name, e.Path, e.Message)
}

// IsThrottle reports whether the API rejected the call for rate reasons.
func (e *APIError) IsThrottle() bool {
	return e.ID == ThrottleViolation
}

// IsThrottle reports whether err carries the throttle_violation code.
func IsThrottle(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsThrottle()
}

// IsTransient reports whether a failed call is worth retrying. Transport,
// decode and payload errors are transient; cancellation of the caller's
// context is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var (
		transportErr *TransportError
		decodeErr    *DecodeError
		apiErr       *APIError
	)
	switch {
	case errors.As(err, &transportErr):
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.As(err, &decodeErr), errors.As(err, &apiErr):
		return true
	default:
		return false
	}
}
