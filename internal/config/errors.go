package config

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Error codes for configuration failures.
const (
	ErrCodeInvalidKey       = "INVALID_KEY"
	ErrCodeInvalidRange     = "INVALID_RANGE"
	ErrCodeInvalidColumns   = "INVALID_COLUMNS"
	ErrCodeInvalidSeparator = "INVALID_SEPARATOR"
	ErrCodeInvalidChar      = "INVALID_CHAR"
	ErrCodeUnknownAttribute = "UNKNOWN_ATTRIBUTE"
	ErrCodeInvalidGroup     = "INVALID_GROUP"
	ErrCodeMissingGroup     = "MISSING_GROUP"
	ErrCodeKeyMismatch      = "KEY_MISMATCH"
	ErrCodeMissingPath      = "MISSING_PATH"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidJob       = "INVALID_JOB"
)

// Error is a configuration error. Every Error is fatal at startup.
type Error struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos // job file position, if known
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if err is or wraps an Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// ErrorCode returns the code of the first Error in err's chain, or "".
func ErrorCode(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func newError(code, field, format string, args ...any) *Error {
	return &Error{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// fromCUE converts a CUE evaluation error, keeping the first position.
func fromCUE(err error) *Error {
	ce := &Error{Code: ErrCodeInvalidJob, Message: err.Error(), Err: err}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return ce
	}
	first := errs[0]
	ce.Message = first.Error()
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		ce.Pos = pos[0]
	}
	return ce
}
