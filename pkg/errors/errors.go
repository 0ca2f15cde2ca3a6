// Package errors provides the error kinds shared across the risk engine,
// plus RFC 7807 problem rendering for the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// Standard error functions
var (
	Is     = errors.Is
	As     = errors.As
	Join   = errors.Join
	Unwrap = errors.Unwrap
)

// Error kinds recognized by the evaluation loop. InvalidInput and
// InvalidTopology abort the affected entity/graph only; FeedUnavailable and
// ConvergenceNotReached are recovered locally and surfaced as flags.
const (
	KindInvalidInput          = "InvalidInput"
	KindInvalidTopology       = "InvalidTopology"
	KindFeedUnavailable       = "FeedUnavailable"
	KindConvergenceNotReached = "ConvergenceNotReached"
	KindNotFound              = "NotFound"
	KindInternal              = "Internal"
)

// Error is the custom error type carrying a kind, a message and a cause
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`

	trace []byte
	cause error
}

var _ error = (*Error)(nil)

func New(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

func NewWithKind(kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// InvalidInput flags a non-physical parameter (negative volatility,
// non-positive spot)
func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// InvalidTopology flags a malformed contagion graph at construction time
func InvalidTopology(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTopology, Message: fmt.Sprintf(format, args...)}
}

// FeedUnavailable flags a missing or stale upstream snapshot; recoverable
func FeedUnavailable(format string, args ...any) *Error {
	return &Error{Kind: KindFeedUnavailable, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error) *Error {
	return &Error{Kind: KindInternal, cause: err}
}

// Error implements error
func (e *Error) Error() string {
	str := fmt.Sprintf("[%s] ", e.Kind)
	if e.Message != "" {
		str += e.Message
	}
	if e.cause != nil {
		str += fmt.Sprintf(" (%s)", e.cause)
	}
	if len(e.trace) > 0 {
		str = str + fmt.Sprintf("\n\nTrace: %s", string(e.trace))
	}
	return str
}

// Reason returns a copy of the error with kind set to given value
func (e *Error) Reason(kind string) *Error {
	err := *e
	err.Kind = kind
	return &err
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Wrap sets the error cause
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// Explain makes a copy of the error with given message
func (e *Error) Explain(message string, args ...any) *Error {
	err := *e
	err.Message = fmt.Sprintf(message, args...)
	return &err
}

// Trace sets the error stack trace
func (e *Error) Trace() *Error {
	stack := make([]byte, 2048)
	n := runtime.Stack(stack, false)
	e.trace = stack[:n]
	return e
}

// Is implements the needed interface for errors.Is; kinds compare equal
func (e *Error) Is(target error) bool {
	if e == nil {
		return target == nil
	}
	if other, ok := target.(*Error); ok {
		return other.Kind == e.Kind
	}
	if e.cause != nil {
		return Is(e.cause, target)
	}
	return false
}

// IsKind reports whether err is an *Error of the given kind
func IsKind(err error, kind string) bool {
	var e *Error
	if As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return p.Detail
}

const problemTypeBase = "https://risk.cwklurks.dev/problems/"

// Problem maps an error to its RFC 7807 representation for the API layer.
func Problem(err error) *ProblemDetails {
	kind := KindInternal
	var e *Error
	if As(err, &e) {
		kind = e.Kind
	}

	status := http.StatusInternalServerError
	title := "Internal Server Error"
	switch kind {
	case KindInvalidInput:
		status, title = http.StatusBadRequest, "Invalid Input"
	case KindInvalidTopology:
		status, title = http.StatusUnprocessableEntity, "Invalid Topology"
	case KindFeedUnavailable:
		status, title = http.StatusServiceUnavailable, "Feed Unavailable"
	case KindConvergenceNotReached:
		status, title = http.StatusUnprocessableEntity, "Convergence Not Reached"
	case KindNotFound:
		status, title = http.StatusNotFound, "Not Found"
	}

	return &ProblemDetails{
		Type:   problemTypeBase + kind,
		Title:  title,
		Status: status,
		Detail: err.Error(),
	}
}
