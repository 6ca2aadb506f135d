package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for ingestion, query and
// migration operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates malformed caller input. Never retried.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeTransientService indicates a retryable embedding service failure
	// (network error, rate limit, 5xx).
	ErrCodeTransientService ErrorCode = "TRANSIENT_SERVICE"
	// ErrCodePermanentService indicates the embedding service rejected the
	// input. Must not be retried.
	ErrCodePermanentService ErrorCode = "PERMANENT_SERVICE"
	// ErrCodeUniquenessConflict indicates a concurrent duplicate ingestion hit
	// the content-hash uniqueness constraint.
	ErrCodeUniquenessConflict ErrorCode = "UNIQUENESS_CONFLICT"
	// ErrCodeNotFound indicates a lookup of an unknown id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStorage indicates the underlying store failed.
	ErrCodeStorage ErrorCode = "STORAGE"
	// ErrCodeIngestionFailed wraps the first failing stage of an ingestion.
	ErrCodeIngestionFailed ErrorCode = "INGESTION_FAILED"
	// ErrCodeQueryFailed wraps a store failure during search.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"
	// ErrCodeMigrationValidation indicates a count or sample mismatch after a
	// migration run.
	ErrCodeMigrationValidation ErrorCode = "MIGRATION_VALIDATION"
)

// OpError represents a structured error for public operations.
type OpError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *OpError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error naming the offending field.
func InvalidArgument(field, msg string) *OpError {
	return &OpError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s: %s", field, msg)}
}

// TransientService creates a retryable service error.
func TransientService(msg string, cause error) *OpError {
	return &OpError{Code: ErrCodeTransientService, Message: msg, Cause: cause}
}

// PermanentService creates a non-retryable service error.
func PermanentService(msg string, cause error) *OpError {
	return &OpError{Code: ErrCodePermanentService, Message: msg, Cause: cause}
}

// UniquenessConflict creates a uniqueness conflict error.
func UniquenessConflict(msg string) *OpError {
	return &OpError{Code: ErrCodeUniquenessConflict, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *OpError {
	return &OpError{Code: ErrCodeNotFound, Message: msg}
}

// Storage creates a storage error.
func Storage(msg string, cause error) *OpError {
	return &OpError{Code: ErrCodeStorage, Message: msg, Cause: cause}
}

// IngestionFailed wraps the first failing ingestion stage.
func IngestionFailed(stage string, cause error) *OpError {
	return &OpError{Code: ErrCodeIngestionFailed, Message: fmt.Sprintf("ingestion failed at stage %q", stage), Cause: cause}
}

// QueryFailed wraps a store failure during search.
func QueryFailed(msg string, cause error) *OpError {
	return &OpError{Code: ErrCodeQueryFailed, Message: msg, Cause: cause}
}

// MigrationValidation creates a migration validation error.
func MigrationValidation(msg string) *OpError {
	return &OpError{Code: ErrCodeMigrationValidation, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *OpError {
	return &OpError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code, unwrapping as needed.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if opErr, ok := err.(*OpError); ok {
			return opErr.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if no OpError is found in the chain.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	for err != nil {
		if opErr, ok := err.(*OpError); ok {
			return opErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return defaultCode
		}
		err = u.Unwrap()
	}
	return defaultCode
}
