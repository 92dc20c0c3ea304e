package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error kinds. Every AppError wraps exactly one of them so callers can
// branch with errors.Is instead of inspecting messages.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSchema            = errors.New("schema error")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidField is a Validation error for a single field.
func InvalidField(field, reason string) *AppError {
	e := Validation(map[string]string{field: reason})
	e.Message = fmt.Sprintf("%s %s", field, reason)
	return e
}

// InsufficientStock reports a demand that exceeds the available quantity.
func InsufficientStock(requested, available int64) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: requested %d, available %d", requested, available),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"requested": fmt.Sprint(requested),
			"available": fmt.Sprint(available),
		},
	}
}

// Schema reports a tabular feed whose header lacks required columns.
func Schema(missing []string) *AppError {
	return &AppError{
		Err:        ErrSchema,
		Code:       "SCHEMA_ERROR",
		Message:    fmt.Sprintf("missing required columns: %v", missing),
		StatusCode: http.StatusBadRequest,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsNotFound(err error) bool          { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool          { return errors.Is(err, ErrConflict) }
func IsValidation(err error) bool        { return errors.Is(err, ErrValidation) }
func IsInsufficientStock(err error) bool { return errors.Is(err, ErrInsufficientStock) }
func IsSchema(err error) bool            { return errors.Is(err, ErrSchema) }
