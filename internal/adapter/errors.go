package adapter

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied is returned when the caller cannot access a resource.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthorized is returned when the bearer token is rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError carries the provider's HTTP status and error message.
// Err is one of the sentinels above, or nil when the status has no mapping.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status code to a sentinel error.
func ClassifyStatus(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return nil
	}
}

// ProviderMessage returns the provider's error message if err carries one,
// otherwise err.Error().
func ProviderMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
