package nimbus

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks failures where no HTTP response was received.
	ErrNetwork = errors.New("network error")
	// ErrNoAccessToken is returned when login or refresh succeeded at the
	// HTTP level but the body did not carry an access token.
	ErrNoAccessToken = errors.New("response has no access_token")
	// ErrUnexpectedBody is returned when a 2xx body lacks the expected fields.
	ErrUnexpectedBody = errors.New("unexpected response body")
	// ErrBodyTooLarge is returned when the response body exceeds the read limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// APIError is an application-level failure: a non-2xx response, or a 2xx
// response that did not have the shape the operation needs.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
	Response   *Response
	cause      error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return e.cause }

// ErrorDetail returns the text to show a user for err, or "" when err
// carries nothing more specific than the caller's own fallback.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	if errors.Is(err, ErrNetwork) {
		return "Network error"
	}
	return ""
}
