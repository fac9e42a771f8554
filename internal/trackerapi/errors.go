package trackerapi

import (
	"errors"
	"fmt"
)

// TransientError wraps a network-level failure (timeout, connection reset)
// that is safe to retry.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient request error: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

// RateLimitedError represents an HTTP 429 response. Repeated occurrences
// cause the client to double its request delay for the rest of the run
// (spec.md §7).
type RateLimitedError struct {
	Method, Path string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s %s", e.Method, e.Path)
}

// ServerError represents a 5xx response, retryable per spec.md §4.1.
type ServerError struct {
	StatusCode   int
	Method, Path string
	Body         []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s %s", e.StatusCode, e.Method, e.Path)
}

// ClientError represents a non-retryable 4xx response (anything but 429).
type ClientError struct {
	StatusCode   int
	Method, Path string
	Body         []byte
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error %d: %s %s", e.StatusCode, e.Method, e.Path)
}

// NotFoundError represents a 404 response for a single-resource fetch.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("task not found: %s", e.Key) }

// ExhaustedError is returned when all retry attempts are used up.
type ExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Cause)
}
func (e *ExhaustedError) Unwrap() error { return e.Cause }

// classifyStatus maps an HTTP status code to the typed error taxonomy in
// spec.md §7, or nil for 2xx.
func classifyStatus(status int, method, path string, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 429:
		return &RateLimitedError{Method: method, Path: path}
	case status == 404:
		return &NotFoundError{Key: path}
	case status >= 500:
		return &ServerError{StatusCode: status, Method: method, Path: path, Body: body}
	default:
		return &ClientError{StatusCode: status, Method: method, Path: path, Body: body}
	}
}

// isRateLimited reports whether err is a 429 response, used to drive the
// consecutive-429 counter that triggers request-delay doubling (spec.md §7).
func isRateLimited(err error) bool {
	var rateLimited *RateLimitedError
	return errors.As(err, &rateLimited)
}

// isRetryable reports whether err should trigger the retry/backoff loop:
// transient network errors, rate limiting, and 5xx responses. Other 4xx
// errors fail fast (spec.md §4.1).
func isRetryable(err error) bool {
	var transient *TransientError
	var rateLimited *RateLimitedError
	var server *ServerError
	switch {
	case errors.As(err, &transient):
		return true
	case errors.As(err, &rateLimited):
		return true
	case errors.As(err, &server):
		return true
	default:
		return false
	}
}
