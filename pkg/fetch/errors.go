package fetch

import (
	"fmt"
	"time"
)

// TimeoutError reports that a call exceeded its configured timeout.
// It is distinct from TransportError: the upstream never answered.
type TimeoutError struct {
	// Provider is the name of the provider the call was made for.
	Provider string

	// Timeout is the configured per-call timeout.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// TransportError reports a non-2xx HTTP response.
type TransportError struct {
	// Provider is the name of the provider that returned the error.
	Provider string

	// StatusCode is the HTTP status code of the response.
	StatusCode int

	// Message is a short description of the failure. It never contains
	// credentials; query strings are stripped before formatting.
	Message string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("provider %q http error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	// Provider is the name of the provider that returned the malformed body.
	Provider string

	// Cause is the underlying decode error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}
