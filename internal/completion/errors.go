package completion

import (
	"errors"
	"fmt"
)

var ErrMissingCredential = errors.New("API key is not configured")

// TransportError means the request never produced an HTTP response: connection refused,
// DNS failure, timeout, or a body that could not be read.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a non-2xx response. Body is the raw response text.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError is a 2xx response whose body is not JSON.
type MalformedResponseError struct {
	Body string
}

func (e *MalformedResponseError) Error() string {
	return "invalid response from server: " + e.Body
}
