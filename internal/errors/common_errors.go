package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeInputNotFound: a source file or table is absent. Reported, and
	// the caller continues with a no-op.
	ErrTypeInputNotFound ErrorType = "INPUT_NOT_FOUND"
	// ErrTypeData: the input is structurally invalid (missing temporal
	// column, unparseable month, nothing left after cleaning)
	ErrTypeData ErrorType = "DATA"
	// ErrTypeComputationSkipped: an advisory analysis could not run for an item
	ErrTypeComputationSkipped ErrorType = "COMPUTATION_SKIPPED"
	ErrTypeStorage            ErrorType = "STORAGE"
	ErrTypeValidation         ErrorType = "VALIDATION"
	ErrTypeConfig             ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError of the same type, so sentinel-style checks
// such as errors.Is(err, &AppError{Type: ErrTypeData}) work
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper functions for common error types

// NewInputNotFoundError reports a missing source file or table
func NewInputNotFoundError(resource string, cause error) *AppError {
	return NewAppError(ErrTypeInputNotFound, fmt.Sprintf("%s not found", resource), cause).
		WithContext("resource", resource)
}

// NewDataError creates a structurally-invalid-input error
func NewDataError(message string, cause error) *AppError {
	return NewAppError(ErrTypeData, message, cause)
}

// NewComputationSkipped records why an analysis did not run for an item
func NewComputationSkipped(item, analysis, reason string) *AppError {
	return NewAppError(ErrTypeComputationSkipped, fmt.Sprintf("%s skipped for %s: %s", analysis, item, reason), nil).
		WithContext("item", item).
		WithContext("analysis", analysis)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// TypeOf returns the type of the first AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

func isType(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}

// IsInputNotFound reports whether err is an INPUT_NOT_FOUND error
func IsInputNotFound(err error) bool { return isType(err, ErrTypeInputNotFound) }

// IsDataError reports whether err is a DATA error
func IsDataError(err error) bool { return isType(err, ErrTypeData) }

// IsComputationSkipped reports whether err is a COMPUTATION_SKIPPED notice
func IsComputationSkipped(err error) bool { return isType(err, ErrTypeComputationSkipped) }

// IsStorageError reports whether err is a STORAGE error
func IsStorageError(err error) bool { return isType(err, ErrTypeStorage) }

// IsValidationError reports whether err is a VALIDATION error
func IsValidationError(err error) bool { return isType(err, ErrTypeValidation) }
