package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for ledger operations.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input rejected before any state mutation.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeRemoteWrite indicates the academic-data service failed during a mutation.
	ErrCodeRemoteWrite ErrorCode = "REMOTE_WRITE"
	// ErrCodeRemoteRead indicates a fetch from the academic-data service failed.
	ErrCodeRemoteRead ErrorCode = "REMOTE_READ"
	// ErrCodeStructureConflict indicates two periods resolve to the same tolerance window.
	ErrCodeStructureConflict ErrorCode = "STRUCTURE_CONFLICT"
	// ErrCodeNotFound indicates the referenced record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// LedgerError represents a structured error for ledger operations.
type LedgerError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *LedgerError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *LedgerError) WithContext(key string, value interface{}) *LedgerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *LedgerError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// Validation creates a validation error.
func Validation(format string, args ...any) *LedgerError {
	return &LedgerError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// RemoteWrite creates a remote write error wrapping the service failure.
func RemoteWrite(msg string, cause error) *LedgerError {
	return &LedgerError{Code: ErrCodeRemoteWrite, Message: msg, Cause: cause}
}

// RemoteRead creates a remote read error wrapping the service failure.
func RemoteRead(msg string, cause error) *LedgerError {
	return &LedgerError{Code: ErrCodeRemoteRead, Message: msg, Cause: cause}
}

// StructureConflict creates a structure conflict error.
func StructureConflict(msg string) *LedgerError {
	return &LedgerError{Code: ErrCodeStructureConflict, Message: msg}
}

// NotFound creates a not found error.
func NotFound(what string) *LedgerError {
	return &LedgerError{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s not found", what)}
}

// IsCode checks if any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var ledgerErr *LedgerError
	if stderrors.As(err, &ledgerErr) {
		return ledgerErr.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, ErrCodeValidation)
}

// IsRemoteWrite reports whether err is a remote write error.
func IsRemoteWrite(err error) bool {
	return IsCode(err, ErrCodeRemoteWrite)
}

// IsStructureConflict reports whether err is a structure conflict error.
func IsStructureConflict(err error) bool {
	return IsCode(err, ErrCodeStructureConflict)
}

// CodeOf extracts the error code from any error.
// Returns the provided default code if the chain holds no LedgerError.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	var ledgerErr *LedgerError
	if stderrors.As(err, &ledgerErr) {
		return ledgerErr.Code
	}
	return defaultCode
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}
