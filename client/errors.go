package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a feed resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrCircuitOpen is returned while a host's circuit breaker is open.
var ErrCircuitOpen = errors.New("feed host unavailable")

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// NotFoundError wraps ErrNotFound with the package that was asked for.
type NotFoundError struct {
	Source  string
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Source, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Source, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the feed rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}
