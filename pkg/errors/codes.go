package errors

import (
	"errors"
	"fmt"

	"github.com/turtacn/Tandem/pkg/consts"
)

// ErrorCode represents a unique identifier for specific error conditions in Tandem.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Startup
	ErrCodeGateFailed ErrorCode = 2001

	// Launch & wait
	ErrCodeLaunchFailed ErrorCode = 3001
	ErrCodeWaitFailed   ErrorCode = 3002
)

// HarnessError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type HarnessError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *HarnessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *HarnessError) Unwrap() error {
	return e.Err
}

// New creates a new HarnessError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &HarnessError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// CodeOf returns the code of the first HarnessError in err's chain,
// or ErrCodeUnknown if there is none.
func CodeOf(err error) ErrorCode {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Code
	}
	return ErrCodeUnknown
}

// IsLaunchError reports whether err was raised while spawning a child.
func IsLaunchError(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeLaunchFailed
}

// ExitCode maps an error that aborted a run to the harness exit status.
func ExitCode(err error) int {
	if err == nil {
		return consts.ExitOK
	}
	switch CodeOf(err) {
	case ErrCodeLaunchFailed:
		return consts.ExitLaunchFailed
	case ErrCodeConfigInvalid:
		return consts.ExitConfigInvalid
	default:
		return 1
	}
}

// Personal.AI order the ending
