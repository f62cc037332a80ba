package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	CodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	CodeBadRequest          ErrorCode = "BAD_REQUEST"
	CodeUsernameTaken       ErrorCode = "USERNAME_TAKEN"
	CodeAlreadyInactive     ErrorCode = "ALREADY_INACTIVE"
	CodeUnauthenticated     ErrorCode = "UNAUTHENTICATED"
	CodeAccountDeactivated  ErrorCode = "ACCOUNT_DEACTIVATED"
	CodeNotFound            ErrorCode = "NOT_FOUND"
	CodeIdempotencyConflict ErrorCode = "IDEMPOTENCY_CONFLICT"
	CodeInternalError       ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusMap maps error codes to HTTP status codes
var HTTPStatusMap = map[ErrorCode]int{
	CodeValidationFailed:    http.StatusBadRequest,
	CodeBadRequest:          http.StatusBadRequest,
	CodeUsernameTaken:       http.StatusBadRequest,
	CodeAlreadyInactive:     http.StatusBadRequest,
	CodeUnauthenticated:     http.StatusUnauthorized,
	CodeAccountDeactivated:  http.StatusUnauthorized,
	CodeNotFound:            http.StatusNotFound,
	CodeIdempotencyConflict: http.StatusConflict,
	CodeInternalError:       http.StatusInternalServerError,
}

// ErrorResponse represents the standardized error response structure
type ErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
		TraceID string      `json:"trace_id,omitempty"`
	} `json:"error"`
}

// AppError represents an application error with code and message.
// Reason is an internal, machine-readable detail meant for logs; it is never
// rendered to the client.
type AppError struct {
	Code    ErrorCode
	Message string
	Reason  string
	Details interface{}
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg += " [" + e.Reason + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithReason returns a copy of the error carrying an internal reason.
func (e *AppError) WithReason(reason string) *AppError {
	cp := *e
	cp.Reason = reason
	return &cp
}

// WithDetails returns a copy of the error carrying client-facing details.
func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// ToErrorResponse converts AppError to ErrorResponse
func (e *AppError) ToErrorResponse(traceID string) ErrorResponse {
	resp := ErrorResponse{}
	resp.Error.Code = e.Code
	resp.Error.Message = e.Message
	resp.Error.Details = e.Details
	resp.Error.TraceID = traceID
	return resp
}

// HTTPStatus returns the HTTP status code for this error
func (e *AppError) HTTPStatus() int {
	if status, exists := HTTPStatusMap[e.Code]; exists {
		return status
	}
	return http.StatusInternalServerError
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

// Validation creates a VALIDATION_FAILED error.
func Validation(message string) *AppError {
	return NewAppError(CodeValidationFailed, message, nil)
}

// BadRequest creates a BAD_REQUEST error.
func BadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, nil)
}

// Unauthenticated creates an UNAUTHENTICATED error with an internal reason.
func Unauthenticated(message, reason string) *AppError {
	return &AppError{Code: CodeUnauthenticated, Message: message, Reason: reason}
}

// NotFound creates a NOT_FOUND error.
func NotFound(message string) *AppError {
	return NewAppError(CodeNotFound, message, nil)
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(message string, cause error) *AppError {
	return NewAppError(CodeInternalError, message, cause)
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return &AppError{Code: appErr.Code, Message: message, Reason: appErr.Reason, Cause: err}
	}
	return NewAppError(CodeInternalError, message, err)
}
