package verification

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode classifies a verification-negative outcome. These are returned to the caller as structured diagnostics
// and are never fatal to the process.
type ErrorCode string

const (
	// ErrorInvalidArguments indicates malformed input: bad hex or oversize source.
	ErrorInvalidArguments ErrorCode = "InvalidArguments"

	// ErrorCompilerUnavailable indicates the requested compiler version is not in the release list or could not be
	// downloaded.
	ErrorCompilerUnavailable ErrorCode = "CompilerUnavailable"

	// ErrorCompileError indicates the compiler reported at least one severity=error diagnostic.
	ErrorCompileError ErrorCode = "CompileError"

	// ErrorContractNotFound indicates the requested contract name was absent from the compiler output.
	ErrorContractNotFound ErrorCode = "ContractNotFound"

	// ErrorBytecodeMismatch indicates the compiled bytecode does not match the deployed bytecode.
	ErrorBytecodeMismatch ErrorCode = "BytecodeMismatch"
)

// Mismatch sub-codes attached to ErrorBytecodeMismatch diagnostics.
const (
	// MismatchRuntime indicates the runtime code differs outright.
	MismatchRuntime = "runtime mismatch"

	// MismatchMetadataOnly indicates the embedded metadata hashes agree but the code differs, which usually means
	// wrong constructor arguments or library addresses.
	MismatchMetadataOnly = "metadata-only mismatch"
)

// Error is a structured verification diagnostic.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a human-readable description, including any mismatch sub-code.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// newError constructs a structured verification diagnostic.
func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrBusy is returned when the verification worker pool is saturated. It maps to HTTP 503.
var ErrBusy = errors.New("verification worker pool is saturated")
