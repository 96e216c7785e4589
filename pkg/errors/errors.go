// Package errors defines the error types surfaced by the Graph API client.
//
// Every concrete type can be matched with errors.As, and each failure kind also
// matches one of the sentinel values below through errors.Is, so callers can
// decide retry and backoff policy without inspecting messages:
//
//	if errors.Is(err, pkgerrs.ErrRateLimited) {
//		// back off
//	}
//
// Nothing in this module retries on its own.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel values matched by the concrete error types through errors.Is.
var (
	ErrEmptyInput          = errors.New("empty input")
	ErrMalformedJSON       = errors.New("malformed JSON")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrFieldConversion     = errors.New("field conversion failure")
	ErrMappingDefinition   = errors.New("unsupported mapping definition")
	ErrPaginationExhausted = errors.New("pagination exhausted: no more pages")
	ErrTransport           = errors.New("transport failure")
	ErrOAuth               = errors.New("oauth failure")
	ErrRateLimited         = errors.New("rate limited")
	ErrPermission          = errors.New("permission denied")
)

// joinParts joins error message parts with the specified separator.
func joinParts(parts []string, sep string) string {
	return strings.Join(parts, sep)
}

// ConfigError indicates a problem with the client configuration or request parameters.
type ConfigError struct {
	// Field contains the name of the configuration field that caused the error
	Field string
	// Message contains the detailed error message
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// AuthError indicates a failure while obtaining an access token.
type AuthError struct {
	// StatusCode is the HTTP status code (if from an HTTP response)
	StatusCode int
	// Message contains the detailed error message
	Message string
	// Body contains the raw response body (if available)
	Body string
	// Err contains the underlying error if available
	Err error
}

func (e *AuthError) Error() string {
	var parts []string
	parts = append(parts, "auth error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status code %d", e.StatusCode))
	}

	if e.Body != "" {
		parts = append(parts, fmt.Sprintf("body: %q", e.Body))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("err: %v", e.Err))
	}

	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + ": " + joinParts(parts[1:], ", ")
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// StateError indicates an operation was attempted when the client is not ready.
type StateError struct {
	// Operation is the name of the operation that was attempted
	Operation string
	// Message contains the detailed error message
	Message string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error during %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// RequestError indicates a problem building an API request before it is sent.
type RequestError struct {
	// Operation is the name of the API operation that failed
	Operation string
	// URL is the URL that was being accessed
	URL string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Operation != "" && e.URL != "" {
		return fmt.Sprintf("request error during %s to %s: %s", e.Operation, e.URL, msg)
	} else if e.Operation != "" {
		return fmt.Sprintf("request error during %s: %s", e.Operation, msg)
	}
	return fmt.Sprintf("request error: %s", msg)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed round trip: the request never produced a
// response, or the response carried a non-2xx status without a recognizable
// Graph error payload. Its contents are opaque to the pagination layer.
type TransportError struct {
	// URL is the request URL with credentials removed
	URL string
	// StatusCode is zero when no response was received
	StatusCode int
	// Body is the raw response body, if any
	Body string
	// Err is the underlying network error, if any
	Err error
}

func (e *TransportError) Error() string {
	var sb strings.Builder
	sb.WriteString("transport error")
	if e.URL != "" {
		fmt.Fprintf(&sb, " for %s", e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, ": status code %d", e.StatusCode)
	}
	if e.Body != "" {
		fmt.Fprintf(&sb, ", body: %q", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ", err: %v", e.Err)
	}
	return sb.String()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport for every TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
