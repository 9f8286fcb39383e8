package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Execution errors raised while running units.
const (
	// ErrCodeStageFailure indicates a leaf unit failed while processing its input.
	ErrCodeStageFailure ErrorCode = "STAGE_FAILURE"
	// ErrCodeCompositionFailure indicates a composer could not be built or could not route its input.
	ErrCodeCompositionFailure ErrorCode = "COMPOSITION_FAILURE"
	// ErrCodeExhaustionFailure indicates every retry attempt or fallback candidate failed.
	ErrCodeExhaustionFailure ErrorCode = "EXHAUSTION_FAILURE"
	// ErrCodeTimeout indicates the unit did not finish before its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeCanceled indicates the caller canceled the run.
	ErrCodeCanceled ErrorCode = "CANCELED"
	// ErrCodeCircuitOpen indicates a guarded unit is rejecting calls.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeOverloaded indicates a guarded unit has no free concurrency slot.
	ErrCodeOverloaded ErrorCode = "OVERLOADED"
	// ErrCodeUnavailable indicates a remote runkit server could not be reached.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Request errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeAlreadyExists indicates the resource already exists.
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeUnauthorized indicates the request carries no valid bearer token.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimited indicates the client sent too many requests.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeStageFailure: true,
	ErrCodeTimeout:      true,
	ErrCodeCircuitOpen:  true,
	ErrCodeOverloaded:   true,
	ErrCodeUnavailable:  true,
	ErrCodeRateLimited:  true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
