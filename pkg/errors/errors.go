package errors

import (
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// ErrorType represents the different classes of failure a run can hit
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthBootstrap ErrorType = "auth_bootstrap"
	ErrorTypeNavigation    ErrorType = "navigation"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeBrowser       ErrorType = "browser"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a typed error carrying an optional cause
type Error struct {
	Type    ErrorType
	Message string
	Err     error
	// Trace is a stack trace, set for errors recovered from a panic and for
	// failures that end a run
	Trace string
}

// New creates a typed error without a cause
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around err. A nil err yields nil.
func Wrap(t ErrorType, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message
func Wrapf(t ErrorType, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same type, so errors.Is(err, errors.New(t, ""))
// works as a type check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// TypeOf returns the type of the outermost typed error in err's chain,
// or ErrorTypeUnknown when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries a typed error of type t
func IsType(err error, t ErrorType) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Type == t {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// TraceOf returns the first stack trace recorded in err's chain
func TraceOf(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Trace != "" {
			return e.Trace
		}
		err = stderrors.Unwrap(err)
	}
	return ""
}

// WithTrace returns err with a trace attached unless its chain already
// carries one. The trace lists each cause in the chain, then the stack of
// the calling goroutine.
func WithTrace(err error) error {
	if err == nil || TraceOf(err) != "" {
		return err
	}

	var b strings.Builder
	for cause := err; cause != nil; cause = stderrors.Unwrap(cause) {
		if e, ok := cause.(*Error); ok {
			fmt.Fprintf(&b, "%s: %s\n", e.Type, e.Message)
			continue
		}
		fmt.Fprintf(&b, "%T: %v\n", cause, cause)
	}
	b.WriteString("\n")
	b.Write(debug.Stack())

	if e, ok := err.(*Error); ok {
		traced := *e
		traced.Trace = b.String()
		return &traced
	}
	return &Error{Type: TypeOf(err), Message: "run failed", Err: err, Trace: b.String()}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNavigation, ErrorTypeTimeout:
		return true
	case ErrorTypeValidation, ErrorTypeAuthBootstrap, ErrorTypeExtraction, ErrorTypeStorage:
		return false
	default:
		return false
	}
}
