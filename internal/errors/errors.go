// Package errors defines VajraEdge's structured error taxonomy.
//
// Every error the core surfaces to a caller is one of seven kinds:
// configuration, validation, resource, lifecycle, task execution,
// coordination, and internal errors. They wrap an underlying cause where
// one exists so callers can still errors.Is/errors.As through to it, while
// giving callers a stable Code to switch on.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, user-facing error category.
type Code string

const (
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeResource      Code = "RESOURCE_ERROR"
	CodeLifecycle     Code = "LIFECYCLE_ERROR"
	CodeTaskExecution Code = "TASK_EXECUTION_ERROR"
	CodeCoordination  Code = "COORDINATION_ERROR"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is the concrete structured error type returned by core operations.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a key/value pair of diagnostic detail and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func newErr(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Configuration(message string) *Error { return newErr(CodeConfiguration, message) }
func Validation(message string) *Error    { return newErr(CodeValidation, message) }
func Resource(message string) *Error      { return newErr(CodeResource, message) }
func Lifecycle(message string) *Error     { return newErr(CodeLifecycle, message) }
func TaskExecution(message string) *Error { return newErr(CodeTaskExecution, message) }
func Coordination(message string) *Error  { return newErr(CodeCoordination, message) }
func Internal(message string) *Error      { return newErr(CodeInternal, message) }

// Wrap produces an Error of the given code carrying cause as its Unwrap chain.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// Is reports whether err is an *Error of the given code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Sentinel errors referenced by callers that need identity
// comparison rather than code comparison (e.g. executor.Status).
var (
	ErrNotFound         = Lifecycle("not found")
	ErrAlreadyRunning   = Lifecycle("test already running")
	ErrNotRunning       = Lifecycle("test is not running")
	ErrTooManyTests     = Resource("too many concurrent tests")
	ErrValidationFailed = Validation("pre-flight validation failed")
)
