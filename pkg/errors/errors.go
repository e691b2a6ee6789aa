package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")
)

// Inventory error kinds. Every AppError produced by the inventory core wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	ErrConcurrentUpdate      = errors.New("concurrent update")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientAvailable = errors.New("insufficient available stock")
	ErrSameWarehouseTransfer = errors.New("same warehouse transfer")
	ErrInvariantViolation    = errors.New("invariant violation")
	ErrPersistence           = errors.New("persistence failure")
	ErrInput                 = errors.New("invalid input")
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
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
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
	if e.Details == nil {
		e.Details = make(map[string]string, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
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

// Inventory constructors

// ConcurrentUpdate reports that another in-process update holds the key.
func ConcurrentUpdate(key string) *AppError {
	return &AppError{
		Err:        ErrConcurrentUpdate,
		Code:       "CONCURRENT_UPDATE",
		Message:    "another update is in progress for this stock cell",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"key": key},
	}
}

func InsufficientStock(onHand, requested int64) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: on hand %d, requested %d", onHand, requested),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func InsufficientAvailable(available, requested int64) *AppError {
	return &AppError{
		Err:        ErrInsufficientAvailable,
		Code:       "INSUFFICIENT_AVAILABLE",
		Message:    fmt.Sprintf("insufficient available stock: available %d, requested %d", available, requested),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func SameWarehouseTransfer() *AppError {
	return &AppError{
		Err:        ErrSameWarehouseTransfer,
		Code:       "SAME_WAREHOUSE_TRANSFER",
		Message:    "source and destination warehouse must differ",
		StatusCode: http.StatusBadRequest,
	}
}

// InvariantViolation is fatal: the operation must not commit.
func InvariantViolation(message string) *AppError {
	return &AppError{
		Err:        ErrInvariantViolation,
		Code:       "INVARIANT_VIOLATION",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// Persistence wraps a gateway I/O failure. The cause stays reachable via Unwrap.
func Persistence(err error, message string) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %w", ErrPersistence, err),
		Code:       "PERSISTENCE_ERROR",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

func Input(message string) *AppError {
	return &AppError{
		Err:        ErrInput,
		Code:       "INPUT_ERROR",
		Message:    message,
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

// Code returns the AppError code carried by err, or an empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
