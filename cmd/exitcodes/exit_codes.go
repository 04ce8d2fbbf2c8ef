package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates an error occurred that was already reported by the component raising it, so the
	// top-level handler should exit without printing it again.
	ExitCodeHandledError = 6

	// ExitCodeIndexerError indicates the block ingestion loop stopped on a systemic error such as an unreachable
	// database. Note that an error with code ExitCodeGeneralError and ExitCodeIndexerError are mutually exclusive.
	ExitCodeIndexerError = 7
)
