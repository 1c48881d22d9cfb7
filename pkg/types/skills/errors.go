package skills

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCode classifies failures surfaced at the engine boundary
type ErrorCode string

const (
	// ErrInvalidParams means caller input failed schema validation or is
	// missing a required field; the error carries the full violation list
	ErrInvalidParams ErrorCode = "InvalidParams"
	// ErrSkillNotFound means the identifier is unknown to the registry
	ErrSkillNotFound ErrorCode = "SkillNotFound"
	// ErrRepository means a sync, clone or fetch failure; the engine keeps
	// serving last-known-good state
	ErrRepository ErrorCode = "RepositoryError"
	// ErrExecution means an unexpected failure during rendering or dispatch
	ErrExecution ErrorCode = "ExecutionError"
	// ErrInternal is any uncaught failure converted at the outermost boundary
	ErrInternal ErrorCode = "InternalError"
)

// Error is a coded engine error. Public operations never surface anything
// else: internal failures are wrapped into one of the codes above.
type Error struct {
	Code       ErrorCode
	Message    string
	Violations []string
	cause      error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Violations, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a coded error with a formatted message
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and message to an underlying cause
func WrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// InvalidParamsError builds an InvalidParams error carrying every collected
// violation, not just the first
func InvalidParamsError(violations []string) *Error {
	return &Error{
		Code:       ErrInvalidParams,
		Message:    fmt.Sprintf("parameter validation failed with %d violation(s)", len(violations)),
		Violations: violations,
	}
}

// NotFoundError builds a SkillNotFound error for the given id
func NotFoundError(id string) *Error {
	return &Error{Code: ErrSkillNotFound, Message: fmt.Sprintf("skill %q not found", id)}
}

// CodeOf extracts the error code from err, defaulting to InternalError for
// anything that is not a coded engine error
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrInternal
}

// AsError extracts the coded error from err, wrapping unknown failures as
// InternalError so callers always see structured data
func AsError(err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return &Error{Code: ErrInternal, Message: err.Error(), cause: err}
}
