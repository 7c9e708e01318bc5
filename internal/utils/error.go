package utils

import (
	"fmt"
	"net/http"
)

// Error codes with HTTP status mapping
const (
	// General errors
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationFailed   = "VALIDATION_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"

	// Bridge errors: every foreign-side exception is caught at the
	// boundary and converted to exactly one of these.
	ErrCodeBridgeInit  = "BRIDGE_INIT_ERROR"
	ErrCodePushdown    = "PUSHDOWN_ERROR"
	ErrCodeOpen        = "OPEN_ERROR"
	ErrCodeRead        = "READ_ERROR"
	ErrCodeClose       = "CLOSE_ERROR"
	ErrCodeBridgeState = "BRIDGE_STATE_ERROR"

	// Scan session errors
	ErrCodeScanNotFound = "SCAN_NOT_FOUND"
	ErrCodeScanExpired  = "SCAN_EXPIRED"
	ErrCodeScanFinished = "SCAN_FINISHED"
)

// HTTPStatus maps error codes to HTTP status codes
var HTTPStatus = map[string]int{
	ErrCodeInvalidRequest:     http.StatusBadRequest,
	ErrCodeValidationFailed:   http.StatusUnprocessableEntity,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,

	ErrCodeBridgeInit:  http.StatusBadGateway,
	ErrCodePushdown:    http.StatusBadRequest,
	ErrCodeOpen:        http.StatusBadGateway,
	ErrCodeRead:        http.StatusBadGateway,
	ErrCodeClose:       http.StatusBadGateway,
	ErrCodeBridgeState: http.StatusInternalServerError,

	ErrCodeScanNotFound: http.StatusNotFound,
	ErrCodeScanExpired:  http.StatusGone,
	ErrCodeScanFinished: http.StatusConflict,
}

// AppError represents an application error with additional context
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorBuilder provides a fluent interface for creating errors
type ErrorBuilder struct {
	code    string
	message string
	details string
	cause   error
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder(code string) *ErrorBuilder {
	return &ErrorBuilder{code: code}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithDetails sets the error details
func (eb *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	eb.details = details
	return eb
}

// WithCause sets the underlying error cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// Build constructs the final AppError
func (eb *ErrorBuilder) Build() *AppError {
	if eb.message == "" {
		eb.message = getDefaultMessage(eb.code)
	}

	return &AppError{
		Code:    eb.code,
		Message: eb.message,
		Details: eb.details,
		Cause:   eb.cause,
	}
}

// getDefaultMessage returns a default message for error codes
func getDefaultMessage(code string) string {
	messages := map[string]string{
		ErrCodeInvalidRequest:     "The request is invalid",
		ErrCodeValidationFailed:   "Validation failed",
		ErrCodeUnauthorized:       "Unauthorized access",
		ErrCodeForbidden:          "Forbidden access",
		ErrCodeNotFound:           "Resource not found",
		ErrCodeConflict:           "Resource conflict",
		ErrCodeInternalError:      "Internal server error",
		ErrCodeServiceUnavailable: "Service temporarily unavailable",
		ErrCodeRateLimitExceeded:  "Rate limit exceeded",

		ErrCodeBridgeInit:  "Foreign scanner construction failed",
		ErrCodePushdown:    "Foreign scanner rejected pushdown configuration",
		ErrCodeOpen:        "Foreign scanner open failed",
		ErrCodeRead:        "Foreign scanner read failed",
		ErrCodeClose:       "Foreign scanner close failed",
		ErrCodeBridgeState: "Bridge operation issued out of order",

		ErrCodeScanNotFound: "Scan not found",
		ErrCodeScanExpired:  "Scan session expired",
		ErrCodeScanFinished: "Scan already reached end of stream",
	}

	if msg, exists := messages[code]; exists {
		return msg
	}
	return "Unknown error"
}

// Convenience constructors for the bridge error taxonomy. Each carries the
// foreign error's message as the details string.

func NewBridgeInitError(cause error, details string) *AppError {
	return NewErrorBuilder(ErrCodeBridgeInit).WithCause(cause).WithDetails(details).Build()
}

func NewPushdownError(cause error, details string) *AppError {
	return NewErrorBuilder(ErrCodePushdown).WithCause(cause).WithDetails(details).Build()
}

func NewOpenError(cause error, details string) *AppError {
	return NewErrorBuilder(ErrCodeOpen).WithCause(cause).WithDetails(details).Build()
}

func NewReadError(cause error, details string) *AppError {
	return NewErrorBuilder(ErrCodeRead).WithCause(cause).WithDetails(details).Build()
}

func NewCloseError(cause error, details string) *AppError {
	return NewErrorBuilder(ErrCodeClose).WithCause(cause).WithDetails(details).Build()
}

func NewBridgeStateError(details string) *AppError {
	return NewErrorBuilder(ErrCodeBridgeState).WithDetails(details).Build()
}

func NewValidationError(message string, details string) *AppError {
	return NewErrorBuilder(ErrCodeValidationFailed).WithMessage(message).WithDetails(details).Build()
}

// IsErrorType checks if an error matches a specific error code
func IsErrorType(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetErrorStatus returns the HTTP status code for an error
func GetErrorStatus(err error) int {
	if appErr, ok := err.(*AppError); ok {
		if status, exists := HTTPStatus[appErr.Code]; exists {
			return status
		}
	}
	return http.StatusInternalServerError
}
