package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Surfaced to the caller, never retried
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// A single simulation failed; contained by batch callers
	ErrorCategoryComputation ErrorCategory = "COMPUTATION"

	// Infrastructure
	ErrorCategoryData    ErrorCategory = "DATA"
	ErrorCategoryStorage ErrorCategory = "STORAGE"
	ErrorCategoryNetwork ErrorCategory = "NETWORK"
	ErrorCategoryTimeout ErrorCategory = "TIMEOUT"
)

// EngineError represents a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether the operation may succeed if repeated
func (e *EngineError) IsRetryable() bool {
	return e.Category == ErrorCategoryNetwork || e.Category == ErrorCategoryTimeout
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewEngineError creates a new categorized error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}

	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// NewConfigError reports malformed or out-of-range input.
func NewConfigError(component, operation, format string, args ...interface{}) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, component, operation, fmt.Sprintf(format, args...))
}

// NewComputationError reports a failed simulation run.
func NewComputationError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryComputation, component, operation)
}

func NewDataError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryData, component, operation)
}

func NewStorageError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryStorage, component, operation)
}

func NewNetworkError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryNetwork, component, operation)
}

// CategoryOf returns the category of the first EngineError in err's chain,
// or "" when there is none.
func CategoryOf(err error) ErrorCategory {
	var engineErr *EngineError
	if stderrors.As(err, &engineErr) {
		return engineErr.Category
	}
	return ""
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return CategoryOf(err) == ErrorCategoryConfiguration
}

// IsComputationError reports whether err is a contained simulation failure.
func IsComputationError(err error) bool {
	return CategoryOf(err) == ErrorCategoryComputation
}

// CategorizeError attempts to categorize a generic error
func CategorizeError(err error, component, operation string) *EngineError {
	if err == nil {
		return nil
	}

	var engineErr *EngineError
	if stderrors.As(err, &engineErr) {
		return engineErr
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	}

	return WrapError(err, ErrorCategoryComputation, component, operation)
}
