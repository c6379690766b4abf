package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nimburion/movies/pkg/observability/logger"
)

// Error codes carried by AppError. They double as the "code" field of the
// JSON error body.
const (
	CodeValidation = "validation_error"
	CodeBadRequest = "bad_request"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeStore      = "store_error"
	CodeInternal   = "internal_server_error"
	CodeTooLarge   = "request_too_large"
	CodeRateLimit  = "rate_limited"
	CodeTimeout    = "request_timeout"
)

const genericMessage = "an unexpected error occurred"

// AppError is the single application error contract shared across layers.
type AppError struct {
	Code       string
	Message    string
	Details    map[string]interface{}
	HTTPStatus int
	Cause      error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Code
	if e.Message != "" {
		label = e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorResponse represents the consistent error response format.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MapError maps application errors to HTTP responses. Errors that are not an
// AppError, and store failures, never leak their cause to the client.
func MapError(ctx context.Context, err error) (int, ErrorResponse) {
	requestID := logger.RequestIDFromContext(ctx)

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, ErrorResponse{
			Error:     genericMessage,
			Code:      CodeInternal,
			RequestID: requestID,
		}
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = inferStatusFromCode(appErr.Code)
	}

	message := appErr.Message
	if message == "" {
		message = genericMessage
	}
	code := appErr.Code
	if code == "" {
		code = errorCategory(status)
	}

	return status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID,
		Details:   appErr.Details,
	}
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Details: details, HTTPStatus: http.StatusBadRequest}
}

// NewBadRequestError reports a malformed request that is not a payload
// validation failure, such as an unparsable identifier.
func NewBadRequestError(message string, cause error) *AppError {
	return &AppError{Code: CodeBadRequest, Message: message, HTTPStatus: http.StatusBadRequest, Cause: cause}
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(message string, cause error) *AppError {
	return &AppError{Code: CodeStore, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// NewPayloadTooLargeError reports a request body above maxBytes.
func NewPayloadTooLargeError(maxBytes int64) *AppError {
	return &AppError{
		Code:       CodeTooLarge,
		Message:    fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", maxBytes),
		HTTPStatus: http.StatusRequestEntityTooLarge,
		Details:    map[string]interface{}{"max_size": maxBytes},
	}
}

// NewInternalError creates a new internal error with optional cause.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

func errorCategory(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		if status >= 500 {
			return CodeInternal
		}
		return "application_error"
	}
}

func inferStatusFromCode(code string) int {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
