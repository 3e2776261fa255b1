// Package upstream defines the error shape shared by every outbound API client.
//
// Both the login provider client and the payment gateway report non-success
// responses as [*Error] so callers can match a single sentinel, [ErrUpstream],
// regardless of which external service failed.
package upstream

import (
	"errors"
	"fmt"
)

// ErrUpstream is matched by every [*Error] via errors.Is.
var ErrUpstream = errors.New("upstream error")

// maxPayload bounds how much of a response body is retained for diagnostics.
const maxPayload = 4096

// Error is a failed outbound call. Payload is the raw response body, trimmed
// to a bounded size.
type Error struct {
	Op      string
	Status  int
	Payload string
	Err     error
}

// New builds an Error, truncating payload.
func New(op string, status int, payload []byte, err error) *Error {
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	return &Error{
		Op:      op,
		Status:  status,
		Payload: string(payload),
		Err:     err,
	}
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": upstream error"
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// PayloadOf returns the diagnostic payload carried by err, if any.
func PayloadOf(err error) string {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Payload
	}
	return ""
}
