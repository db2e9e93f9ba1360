// ABOUTME: Error types for the toolbench HTTP client
// ABOUTME: APIError carries the HTTP status; sentinels classify transport failures

package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport-level failures (no HTTP response was received).
var (
	ErrTimeout = errors.New("request timed out")
	ErrNetwork = errors.New("network error")
)

// APIError is returned for any response with a non-2xx status. The
// notification side effect has already fired by the time callers see it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// StatusOf returns the HTTP status carried by err, or 0 if err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}
