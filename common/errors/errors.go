// Package errors pairs an error with the process exit code it should produce.
package errors

import (
	goerrors "errors"
)

type ExitCodeError struct {
	code ExitCode
	error
}

func NewError(err error, exitCode ExitCode) *ExitCodeError {
	if err == nil {
		return nil
	}
	return &ExitCodeError{exitCode, err}
}

func (e *ExitCodeError) GetExitCode() ExitCode {
	if e == nil {
		return 0
	}
	return e.code
}

func (e *ExitCodeError) Unwrap() error {
	return e.error
}

// ExitCodeOf returns the exit code carried anywhere in err's chain,
// 0 for nil and 1 for errors that carry none.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return 0
	}
	var ece *ExitCodeError
	if goerrors.As(err, &ece) {
		return ece.GetExitCode()
	}
	return 1
}
