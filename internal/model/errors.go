package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common cases.
// Use errors.Is() to check against these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrUpstreamError  = errors.New("upstream error")
	ErrRateLimited    = errors.New("rate limited")
)

// APIError is an error the admin endpoints can show to the caller.
// Message is safe to display; Err carries the cause for logs and errors.Is.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(status int, code, message string, cause error) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: status, Err: cause}
}

// NewNotFoundError reports a missing order or record.
func NewNotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND", resource+" not found", ErrNotFound)
}

// NewValidationError reports a rejected admin field.
func NewValidationError(field, reason string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR",
		fmt.Sprintf("invalid %s: %s", field, reason), ErrInvalidRequest)
}

// NewPayloadError creates a 400 error whose message is shown to the admin UI verbatim.
func NewPayloadError(message string) *APIError {
	return newAPIError(http.StatusBadRequest, "INVALID_PAYLOAD", message, ErrInvalidRequest)
}

// NewMissingParamError creates a 400 error for a required script parameter that was not sent.
func NewMissingParamError(key string) *APIError {
	return NewPayloadError("Missing required parameter: " + key)
}

func NewUnauthorizedError(reason string) *APIError {
	return newAPIError(http.StatusUnauthorized, "UNAUTHORIZED", reason, ErrUnauthorized)
}

// NewForbiddenError creates a 403 error for a bad nonce or a missing capability.
func NewForbiddenError(reason string) *APIError {
	return newAPIError(http.StatusForbidden, "FORBIDDEN", reason, ErrForbidden)
}

// NewUpstreamError reports a failed call to the WordPress origin.
func NewUpstreamError(service string, err error) *APIError {
	return newAPIError(http.StatusBadGateway, "UPSTREAM_ERROR", service+" request failed",
		fmt.Errorf("%w: %v", ErrUpstreamError, err))
}

// NewInternalError hides err behind a generic message.
func NewInternalError(err error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred", err)
}

// NewRateLimitError reports that the origin throttled us.
func NewRateLimitError(service string) *APIError {
	return newAPIError(http.StatusTooManyRequests, "RATE_LIMITED",
		service+" rate limit exceeded, please retry later", ErrRateLimited)
}
