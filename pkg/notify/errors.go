package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrQueueFull is returned by Publish when the queue has no room.
	ErrQueueFull = errors.New("notify: queue full")

	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("notify: dispatcher closed")

	// ErrNoWebhook is returned when a webhook sink has no URL.
	ErrNoWebhook = errors.New("notify: webhook URL required")
)

// APIError is a non-2xx response from a webhook endpoint.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body, truncated.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("notify: webhook error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsRetryable returns true if the request may succeed when repeated.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsRetryable reports whether err is worth another attempt. Transport
// errors are retryable; API errors decide for themselves.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	return err != nil
}
