package internal

import (
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/validation"
)

const (
	// MaxBatchSize is the number of operations Graph accepts in one batch call
	MaxBatchSize = 50

	// maxObjectIDs caps the ids parameter of a multiple-object fetch
	maxObjectIDs = 50

	// User agent constraints
	maxUserAgentLength = 256
)

// reservedParams are set by the client on every request.
var reservedParams = map[string]bool{
	"access_token":    true,
	"appsecret_proof": true,
	"format":          true,
}

// Validator provides validation operations for Graph API request parameters.
type Validator struct{}

// NewValidator creates a new Validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateObjectPath checks a request path such as "me", "123_456/comments"
// or "20531316728/photos". The first segment must be an object ID or alias and
// each further segment an edge name.
func (v *Validator) ValidateObjectPath(path string) error {
	path = strings.Trim(path, "/")
	if path == "" {
		return &pkgerrs.ConfigError{Field: "object", Message: "object path cannot be empty"}
	}
	if strings.ContainsAny(path, "?#") {
		return &pkgerrs.ConfigError{Field: "object", Message: "object path cannot contain a query or fragment, use parameters instead"}
	}
	if strings.Contains(path, "..") {
		return &pkgerrs.ConfigError{Field: "object", Message: "object path cannot contain '..'"}
	}

	segments := strings.Split(path, "/")
	if !validation.IsValidObjectID(segments[0]) && !validation.IsValidAlias(segments[0]) {
		return &pkgerrs.ConfigError{Field: "object", Message: fmt.Sprintf("invalid object %q", segments[0])}
	}
	for i, seg := range segments[1:] {
		if !isEdgeName(seg) {
			return &pkgerrs.ConfigError{Field: "object", Message: fmt.Sprintf("invalid edge %q at segment %d", seg, i+1)}
		}
	}
	return nil
}

// isEdgeName accepts lowercase edge names such as "feed" or "live_videos", and
// numeric IDs for paths like "act_1/adsets".
func isEdgeName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		b := s[i]
		if !(b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')) {
			return false
		}
	}
	return true
}

// ValidateParameterNames rejects empty, reserved and duplicate parameter names.
func (v *Validator) ValidateParameterNames(names []string) error {
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return &pkgerrs.ConfigError{Field: fmt.Sprintf("parameters[%d]", i), Message: "parameter name cannot be blank"}
		}
		if reservedParams[name] {
			return &pkgerrs.ConfigError{Field: name, Message: "parameter name is reserved and set by the client"}
		}
		if seen[name] {
			return &pkgerrs.ConfigError{Field: name, Message: "parameter is specified more than once"}
		}
		seen[name] = true
	}
	return nil
}

// ValidateObjectIDs checks the ids of a multiple-object fetch.
func (v *Validator) ValidateObjectIDs(ids []string) error {
	if len(ids) == 0 {
		return &pkgerrs.ConfigError{Field: "ids", Message: "at least one ID is required"}
	}
	if len(ids) > maxObjectIDs {
		return &pkgerrs.ConfigError{Field: "ids", Message: fmt.Sprintf("cannot request more than %d objects at once (got %d)", maxObjectIDs, len(ids))}
	}

	for i, id := range ids {
		if !validation.IsValidObjectID(id) && !validation.IsValidAlias(id) {
			return &pkgerrs.ConfigError{
				Field:   fmt.Sprintf("ids[%d]", i),
				Message: fmt.Sprintf("invalid object ID %q", id),
			}
		}
	}
	return nil
}

// ValidateBatchSize checks the number of operations in a batch request.
func (v *Validator) ValidateBatchSize(n int) error {
	if n == 0 {
		return &pkgerrs.ConfigError{Field: "batch", Message: "batch must contain at least one request"}
	}
	if n > MaxBatchSize {
		return &pkgerrs.ConfigError{Field: "batch", Message: fmt.Sprintf("batch cannot exceed %d requests (got %d)", MaxBatchSize, n)}
	}
	return nil
}

// ValidateAPIVersion checks a version such as "v21.0".
func (v *Validator) ValidateAPIVersion(version string) error {
	if !validation.IsValidAPIVersion(version) {
		return &pkgerrs.ConfigError{Field: "APIVersion", Message: fmt.Sprintf("invalid API version %q, expected the form v21.0", version)}
	}
	return nil
}

// ValidateFields checks the value of a fields parameter.
func (v *Validator) ValidateFields(expr string) error {
	if err := validation.ValidateFields(expr); err != nil {
		return &pkgerrs.ConfigError{Field: "fields", Message: err.Error()}
	}
	return nil
}

// ValidateUserAgent validates the User-Agent string to prevent header injection attacks.
func (v *Validator) ValidateUserAgent(ua string) error {
	// User-Agent cannot be empty (should have been set to default before this check)
	if len(ua) == 0 {
		return fmt.Errorf("user agent cannot be empty")
	}

	// Check for newline characters that could be used for header injection
	if strings.ContainsAny(ua, "\r\n") {
		return fmt.Errorf("user agent cannot contain newline characters")
	}

	// User-Agent should have a reasonable maximum length
	if len(ua) > maxUserAgentLength {
		return fmt.Errorf("user agent too long (max %d characters)", maxUserAgentLength)
	}

	return nil
}
