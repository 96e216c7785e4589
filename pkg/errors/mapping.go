package errors

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MappingErrorKind distinguishes the ways JSON can fail to map onto a Go type.
type MappingErrorKind int

const (
	// EmptyInput means the JSON text was blank.
	EmptyInput MappingErrorKind = iota + 1
	// MalformedJSON means the JSON text could not be parsed.
	MalformedJSON
	// TypeMismatch means an array, object or scalar appeared where another shape was expected.
	TypeMismatch
	// FieldConversion means a single JSON value could not be converted to its field's type.
	FieldConversion
	// MappingDefinition means the Go type itself cannot be mapped, e.g. a bad hook signature.
	MappingDefinition
)

func (k MappingErrorKind) String() string {
	switch k {
	case EmptyInput:
		return "empty input"
	case MalformedJSON:
		return "malformed JSON"
	case TypeMismatch:
		return "type mismatch"
	case FieldConversion:
		return "field conversion"
	case MappingDefinition:
		return "mapping definition"
	default:
		return "unknown"
	}
}

// maxRawValueLen caps how much of an offending value is echoed in messages.
const maxRawValueLen = 200

// MappingError is the single error type produced by the JSON mapper.
type MappingError struct {
	Kind MappingErrorKind
	// Type is the Go type that was being produced
	Type string
	// Field is the Go field name, for FieldConversion errors
	Field string
	// Key is the JSON key the field is bound to
	Key string
	// Value is the raw JSON text that failed to convert
	Value string
	// Message contains the detailed error message
	Message string
	// Err contains the underlying error if available
	Err error
}

func (e *MappingError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "json mapping error (%s)", e.Kind)

	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}

	if e.Field != "" {
		fmt.Fprintf(&sb, "; field %s", e.Field)
		if e.Key != "" {
			fmt.Fprintf(&sb, " (json key %q)", e.Key)
		}
	}
	if e.Type != "" {
		fmt.Fprintf(&sb, "; type %s", e.Type)
	}
	if e.Value != "" {
		value := e.Value
		if len(value) > maxRawValueLen {
			cut := maxRawValueLen
			for cut > 0 && !utf8.RuneStart(value[cut]) {
				cut--
			}
			value = value[:cut] + "..."
		}
		fmt.Fprintf(&sb, "; value %s", value)
	}
	if e.Err != nil && e.Message != "" {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel value for the error's kind.
func (e *MappingError) Is(target error) bool {
	switch e.Kind {
	case EmptyInput:
		return target == ErrEmptyInput
	case MalformedJSON:
		return target == ErrMalformedJSON
	case TypeMismatch:
		return target == ErrTypeMismatch
	case FieldConversion:
		return target == ErrFieldConversion
	case MappingDefinition:
		return target == ErrMappingDefinition
	}
	return false
}
