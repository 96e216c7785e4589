package errors

import "fmt"

// GraphErrorKind classifies a Graph API error payload.
type GraphErrorKind int

const (
	// KindQuery covers every error not classified more specifically.
	KindQuery GraphErrorKind = iota
	// KindOAuth covers invalid, expired or revoked access tokens.
	KindOAuth
	// KindRateLimited covers application, user and page level throttling.
	KindRateLimited
	// KindPermission covers missing permissions or capabilities.
	KindPermission
)

func (k GraphErrorKind) String() string {
	switch k {
	case KindOAuth:
		return "oauth"
	case KindRateLimited:
		return "rate limited"
	case KindPermission:
		return "permission"
	default:
		return "query"
	}
}

// GraphError is an error payload returned by the Graph API, either the modern
// {"error":{...}} envelope or the legacy REST {"error_code":...} form.
type GraphError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Type is the error type reported by the API, e.g. "OAuthException"
	Type string
	// Code is the numeric error code
	Code int
	// Subcode is the numeric error subcode, zero if absent
	Subcode int
	// Message is the developer-facing message
	Message string
	// UserTitle and UserMessage are the optional end-user texts
	UserTitle   string
	UserMessage string
	// TraceID is the fbtrace_id used by Facebook support
	TraceID string
	// Transient is the API's own hint that the call may succeed later
	Transient bool
	// Kind is derived from Type and Code
	Kind GraphErrorKind
}

// NewGraphError builds a GraphError and classifies it.
func NewGraphError(statusCode int, errType string, code, subcode int, message string) *GraphError {
	e := &GraphError{
		StatusCode: statusCode,
		Type:       errType,
		Code:       code,
		Subcode:    subcode,
		Message:    message,
	}
	e.Kind = ClassifyGraphError(errType, code)
	return e
}

// ClassifyGraphError maps an error type and code to a GraphErrorKind.
func ClassifyGraphError(errType string, code int) GraphErrorKind {
	switch {
	case code == 4 || code == 17 || code == 32 || code == 341 || code == 613:
		return KindRateLimited
	case code >= 80000 && code <= 80014:
		return KindRateLimited
	case code == 102 || code == 190 || (code >= 450 && code <= 467):
		return KindOAuth
	case code == 10 || (code >= 200 && code <= 299):
		return KindPermission
	case errType == "OAuthException" && code == 0:
		return KindOAuth
	}
	return KindQuery
}

func (e *GraphError) Error() string {
	s := fmt.Sprintf("graph API error (status %d, %s", e.StatusCode, e.Kind)
	if e.Type != "" {
		s += ", type " + e.Type
	}
	s += fmt.Sprintf(", code %d", e.Code)
	if e.Subcode != 0 {
		s += fmt.Sprintf(", subcode %d", e.Subcode)
	}
	s += "): " + e.Message
	if e.TraceID != "" {
		s += " [fbtrace_id " + e.TraceID + "]"
	}
	return s
}

// Is matches ErrOAuth, ErrRateLimited or ErrPermission according to Kind.
func (e *GraphError) Is(target error) bool {
	switch e.Kind {
	case KindOAuth:
		return target == ErrOAuth
	case KindRateLimited:
		return target == ErrRateLimited
	case KindPermission:
		return target == ErrPermission
	}
	return false
}
