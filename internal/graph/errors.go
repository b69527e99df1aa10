package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error types for Microsoft Graph API responses.
var (
	// ErrUnauthorised indicates the access token is invalid or expired.
	ErrUnauthorised = errors.New("graph: unauthorised")

	// ErrForbidden indicates the granted scopes do not cover the request.
	ErrForbidden = errors.New("graph: forbidden")

	// ErrNotFound indicates the message, folder or category does not exist.
	ErrNotFound = errors.New("graph: not found")

	// ErrRateLimited indicates the request was throttled.
	ErrRateLimited = errors.New("graph: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("graph: bad request")

	// ErrServerError indicates a server-side failure.
	ErrServerError = errors.New("graph: server error")
)

// APIError is a non-2xx response from Graph.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&sb, " %s", e.Code)
	}
	switch {
	case e.Message != "":
		fmt.Fprintf(&sb, " - %s", e.Message)
	case e.Body != "":
		fmt.Fprintf(&sb, " - %s", e.Body)
	}
	return sb.String()
}

// Unwrap maps the status code onto a sentinel so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	return WrapError(e.StatusCode)
}

// errorBody is the Graph error envelope: {"error": {"code": ..., "message": ...}}.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error.Code != "" {
		apiErr.Code = eb.Error.Code
		apiErr.Message = eb.Error.Message
		return apiErr
	}

	apiErr.Body = strings.TrimSpace(string(body))
	return apiErr
}

// WrapError converts an HTTP status code to an appropriate error.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsRetryable reports whether a response status is worth another attempt.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= 500
}
