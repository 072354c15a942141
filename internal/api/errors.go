package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ValidationError reports caller input that was rejected before any request
// was sent.
type ValidationError struct {
	Path       string   // endpoint the payload was destined for
	Violations []string // human-readable rule failures
	Err        error    // optional sentinel cause
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.Violations, "; ")
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("invalid request for %s: %s", e.Path, msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TransportError reports a request that did not produce a 2xx response:
// connection failures, timeouts and non-success statuses. Status is zero when
// no response was received.
type TransportError struct {
	Method     string
	Path       string
	Status     int
	StatusText string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.StatusText)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request was abandoned at its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// SchemaError reports a 2xx response whose body does not match the expected
// shape, which means the client and backend disagree on the contract.
type SchemaError struct {
	Path       string
	Violations []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s", e.Path, strings.Join(e.Violations, "; "))
}
