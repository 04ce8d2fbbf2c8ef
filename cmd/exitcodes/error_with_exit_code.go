package exitcodes

import "errors"

// ErrorWithExitCode pairs an error with the process exit code it should produce once it reaches main. Errors
// without this wrapper exit with ExitCodeGeneralError.
type ErrorWithExitCode struct {
	err      error
	exitCode int
}

// NewErrorWithExitCode wraps err with the exit code to report for it.
func NewErrorWithExitCode(err error, exitCode int) *ErrorWithExitCode {
	return &ErrorWithExitCode{err: err, exitCode: exitCode}
}

// Error implements the error interface.
func (e *ErrorWithExitCode) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (e *ErrorWithExitCode) Unwrap() error {
	return e.err
}

// GetInnerErrorAndExitCode resolves an error that bubbled up to main into the error to report and the code to exit
// with: ExitCodeSuccess for nil, the carried code when an ErrorWithExitCode is in the chain, and
// ExitCodeGeneralError for anything else.
func GetInnerErrorAndExitCode(err error) (error, int) {
	if err == nil {
		return nil, ExitCodeSuccess
	}
	var wrapped *ErrorWithExitCode
	if errors.As(err, &wrapped) {
		return wrapped.err, wrapped.exitCode
	}
	return err, ExitCodeGeneralError
}
