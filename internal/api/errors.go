package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAdminKey is returned by admin mutations when no key is set.
// No request is sent in that case.
var ErrMissingAdminKey = errors.New("admin key is not set")

// ErrInvalidMode is returned for a pipeline mode the backend does not know.
var ErrInvalidMode = errors.New("invalid pipeline mode")

// APIError represents a structured error response from the NovaPress API.
// Callers should prefer the predicate functions (IsNotFound, IsUnauthorized, etc.)
// to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	code       string
	message    string
}

func (e *APIError) Error() string {
	if e.code != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.code, e.message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, code string, message string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		code:       code,
		message:    message,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code returns the backend's application error code, if any.
func (e *APIError) Code() string { return e.code }

// Message returns the human-readable error message.
func (e *APIError) Message() string { return e.message }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// IsConflict reports whether err is an API error with HTTP 409 status.
// The backend answers 409 when a pipeline run already holds the lock.
func IsConflict(err error) bool { return HasStatusCode(err, http.StatusConflict) }

// IsClientError reports whether err is an API error in the 4xx range.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode >= 400 && apiErr.statusCode < 500
}

// IsAPIError reports whether the server answered at all. Errors that are not
// API errors are transport failures (DNS, refused connection, timeout).
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// HasErrorCode reports whether err is an API error whose application code matches.
func HasErrorCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.code == code
}
