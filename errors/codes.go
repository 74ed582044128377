package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates a dependency is temporarily unavailable.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeConnectionFailed indicates a failed connection to a peer.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeNoCapacity indicates no worker node can take the job right now.
	ErrCodeNoCapacity ErrorCode = "NO_CAPACITY"
)

// Resource errors
const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
)

// Validation errors
const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
)

// Identification errors
const (
	// ErrCodeIdentificationFailed indicates a fetch or compare step could not complete.
	ErrCodeIdentificationFailed ErrorCode = "IDENTIFICATION_FAILED"
	// ErrCodePersistenceFailed indicates a decision was computed but not recorded.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// Internal errors
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable:   true,
	ErrCodeConnectionFailed:     true,
	ErrCodeTimeout:              true,
	ErrCodeNoCapacity:           true,
	ErrCodeDatabaseError:        true,
	ErrCodeExternalService:      true,
	ErrCodePersistenceFailed:    true,
	ErrCodeIdentificationFailed: false,
	ErrCodeInternal:             false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
