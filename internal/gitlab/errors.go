package gitlab

import (
	"fmt"
)

// TransientError indicates a transport-level failure (timeout or DNS class)
// that persisted through every retry attempt.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ServerError indicates the server kept answering 5xx through every retry
// attempt.
type ServerError struct {
	StatusCode int
	Attempts   int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d after %d attempts", e.StatusCode, e.Attempts)
}

// AuthenticationError indicates a 401 response. Never retried.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "authentication failed (401): check the configured token"
}

// AuthorizationError indicates a 403 response. Never retried.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string {
	return "authorization failed (403): token lacks access to this resource"
}

// APIError indicates a non-2xx response outside the dedicated auth cases.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// MalformedPayloadError indicates the response body decoded but did not
// match the expected shape (object vs. list).
type MalformedPayloadError struct {
	Expected string
	Err      error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed payload: expected %s: %v", e.Expected, e.Err)
	}
	return fmt.Sprintf("malformed payload: expected %s", e.Expected)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
