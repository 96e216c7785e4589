package jsonvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SyntaxError describes JSON text that could not be parsed.
type SyntaxError struct {
	// Offset is the byte offset at which the problem was detected
	Offset int64
	Msg    string
	Err    error
}

func (e *SyntaxError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("jsonvalue: %s at offset %d: %v", e.Msg, e.Offset, e.Err)
	}
	return fmt.Sprintf("jsonvalue: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Parse parses exactly one JSON value of any kind. Leading and trailing
// whitespace is allowed; any other trailing data is an error.
func Parse(s string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "unexpected data after top-level value"}
		}
		return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "invalid trailing data", Err: err}
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "invalid value", Err: err}
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		}
	}
	return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("unexpected token %v", tok)}
}

func parseObject(dec *json.Decoder) (Value, error) {
	members := []Member{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: "invalid object key", Err: err}
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("object key must be a string, got %v", tok)}
		}
		v, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: v})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return Value{}, err
	}
	return Object(members...), nil
}

func parseArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		v, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return Value{}, err
	}
	return Array(items...), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("expected %v", want), Err: err}
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return &SyntaxError{Offset: dec.InputOffset(), Msg: fmt.Sprintf("expected %v, got %v", want, tok)}
	}
	return nil
}
