package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInvalidFormat indicates a field has an invalid format.
	ErrCodeInvalidFormat ErrorCode = "INVALID_FORMAT"
)

// Upstream errors
const (
	// ErrCodeConnectionFailed indicates the remote end could not be reached.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the request did not complete in time.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeBadResponse indicates the remote end answered with an unusable payload.
	ErrCodeBadResponse ErrorCode = "BAD_RESPONSE"
)

// ErrCodeInternal indicates a failure inside this process.
const ErrCodeInternal ErrorCode = "INTERNAL_ERROR"

// IsValidationCode reports whether the code belongs to the validation group.
func IsValidationCode(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeInvalidFormat:
		return true
	}
	return false
}
