package simerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/status"
)

// #region error-type

// Error is the engine's domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// #endregion error-type

// #region constructors

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// #endregion constructors

// #region helpers

// CodeOf extracts the error code from any error. Returns CodeUnknown
// if the error is not a domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error carries the specified code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ToStatus converts any error to a gRPC status with the mapped code.
// Non-domain errors map to Internal.
func ToStatus(err error) *status.Status {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return status.New(e.Code.GRPCCode(), e.Message)
	}
	return status.New(CodeUnknown.GRPCCode(), err.Error())
}

// #endregion helpers
