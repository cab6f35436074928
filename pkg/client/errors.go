package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 403 and 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassForbidden represents 403 responses. The backend uses them for
	// transient anti-abuse blocks, so they are retried.
	ErrorClassForbidden ErrorClass = "forbidden"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents timeouts, resets and malformed bodies.
	ErrorClassNetwork ErrorClass = "network"
)

// retryableStatus lists the HTTP statuses that are retried. Everything else
// is terminal for the call.
var retryableStatus = map[int]bool{
	http.StatusForbidden:           true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// classifyStatus maps an HTTP status to its error class.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code == http.StatusForbidden:
		return ErrorClassForbidden
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	ErrorClass ErrorClass
	// RetryAfter is the server-supplied back-off, 0 if absent or unparsable.
	RetryAfter time.Duration
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s error (status %d): %s",
			e.Endpoint, e.ErrorClass, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s error (status %d)", e.Endpoint, e.ErrorClass, e.StatusCode)
}

// TransportError is a failure below HTTP semantics: timeouts, connection
// resets and bodies that are not valid JSON.
type TransportError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s network error: %v", e.Endpoint, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// RetryExhaustedError reports a call that failed on every allowed attempt.
type RetryExhaustedError struct {
	Endpoint string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v after %d attempts: %v", e.Endpoint, ErrRetryExhausted, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRetryExhausted) hold.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrRetryExhausted
}

// shouldRetry determines if an error from one attempt should be retried.
func shouldRetry(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return retryableStatus[se.StatusCode]
	}
	var te *TransportError
	return errors.As(err, &te)
}

// errorClassOf returns the class used for metrics and logs.
func errorClassOf(err error) ErrorClass {
	var se *StatusError
	if errors.As(err, &se) {
		return se.ErrorClass
	}
	var te *TransportError
	if errors.As(err, &te) {
		return ErrorClassNetwork
	}
	return ""
}
