package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrNotFound is returned when a container or object does not exist.
var ErrNotFound = errors.New("not found")

// TimeoutError reports an operation that exceeded the connection or request
// timeout.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// InterruptedError reports an operation aborted before completion, usually by
// context cancellation at the end of a run.
type InterruptedError struct {
	Op  string
	Err error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("%s: interrupted: %v", e.Op, e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }

// Error is any other backend failure. Status carries the backend's own
// description, such as an HTTP status line.
type Error struct {
	Op     string
	Status string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// wrap maps a native error into the storage taxonomy. Errors that are already
// classified pass through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		te *TimeoutError
		ie *InterruptedError
		se *Error
	)
	if errors.As(err, &te) || errors.As(err, &ie) || errors.As(err, &se) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &InterruptedError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return &Error{Op: op, Err: err}
}

// ErrorKind returns a short stable label for err, used to bucket failures in
// reports: "timeout", "interrupted", "not_found", the backend status, or "error".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		te *TimeoutError
		ie *InterruptedError
		se *Error
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &te):
		return "timeout"
	case errors.As(err, &ie):
		return "interrupted"
	case errors.As(err, &se) && se.Status != "":
		return se.Status
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// IsTransient reports whether retrying err may succeed: timeouts and the
// throttling or gateway statuses 429, 500, 502, 503 and 504. Interruptions and
// errors without a backend status are never retried.
func IsTransient(err error) bool {
	var (
		te *TimeoutError
		ie *InterruptedError
		se *Error
	)
	switch {
	case errors.As(err, &ie):
		return false
	case errors.As(err, &te):
		return true
	case errors.As(err, &se):
		return isRetryableStatus(se.Status)
	default:
		return false
	}
}

func isRetryableStatus(status string) bool {
	if len(status) < 3 {
		return false
	}
	switch status[:3] {
	case "429", "500", "502", "503", "504":
		return true
	}
	return false
}

// Classify maps err into the storage taxonomy. Callers use it for failures
// that happen outside a backend call, such as reading a returned object body.
func Classify(op string, err error) error {
	return wrap(op, err)
}
