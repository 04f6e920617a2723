// Package errors provides the structured application error used across services and handlers.
package errors

import (
	"errors"
	"fmt"

	"github.com/target/mediabroker/internal/domain/model"
)

// ErrorCode represents a transport-level class of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates the resource is not in a state that allows the operation.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeRateLimited indicates the caller exceeded an admission limit.
	ErrCodeRateLimited ErrorCode = "rate_limited"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, a user-facing
// category, a message, and optional cause. It supports errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error for transport mapping.
	Code ErrorCode
	// Category is the user-facing taxonomy value reported in error bodies.
	Category model.ErrorCategory
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError for category using the category's user message.
func New(code ErrorCode, category model.ErrorCategory) *AppError {
	return &AppError{Code: code, Category: category, Message: category.UserMessage()}
}

// UnknownJob is returned for lookups of ids that are absent or already removed.
func UnknownJob(id string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Category: model.CategoryUnknownJob,
		Message:  model.CategoryUnknownJob.UserMessage(),
		Field:    id,
	}
}

// NotCompleted is returned when a fetch targets a job with no result yet.
func NotCompleted(id string, state model.JobState) *AppError {
	return &AppError{
		Code:     ErrCodeConflict,
		Category: model.CategoryJobNotCompleted,
		Message:  fmt.Sprintf("job %s is %s; keep polling until completed", id, state),
	}
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{
		Code:     ErrCodeConflict,
		Category: model.CategoryUnknown,
		Message:  fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(category model.ErrorCategory, field, message string) *AppError {
	return &AppError{
		Code:     ErrCodeValidation,
		Category: category,
		Message:  message,
		Field:    field,
	}
}

// RateLimited creates a new admission throttle error.
func RateLimited() *AppError {
	return New(ErrCodeRateLimited, model.CategoryTooManyRequests)
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInternal,
		Category: model.CategoryUnknown,
		Message:  message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:     code,
		Category: model.CategoryUnknown,
		Message:  message,
		Cause:    err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsRateLimited checks if an error is a RateLimited error.
func IsRateLimited(err error) bool {
	return isCode(err, ErrCodeRateLimited)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetCategory returns the user-facing category for err, or unknown if err is not an AppError.
func GetCategory(err error) model.ErrorCategory {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Category.Valid() {
		return appErr.Category
	}
	return model.CategoryUnknown
}
