package internal

import (
	"strconv"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// Envelope is the pagination wrapper Graph puts around every connection:
//
//	{"data":[...],"paging":{"cursors":{"before":"..","after":".."},"previous":"..","next":".."},"summary":{"total_count":3}}
type Envelope struct {
	// Data holds the page items. It is never nil.
	Data []jsonvalue.Value

	Previous string
	Next     string
	Before   string
	After    string

	TotalCount    int64
	HasTotalCount bool

	// Summary is the raw summary object, null when absent.
	Summary jsonvalue.Value
}

// ParseEnvelope extracts the page items and paging metadata from a parsed
// response. A data object is treated as a one-element page, missing data as an
// empty page and a top-level array as a page without paging metadata.
func ParseEnvelope(root jsonvalue.Value) Envelope {
	env := Envelope{Data: []jsonvalue.Value{}}

	switch root.Kind() {
	case jsonvalue.KindArray:
		env.Data = append(env.Data, root.Items()...)
		return env
	case jsonvalue.KindObject:
	default:
		return env
	}

	if data, ok := root.Get("data"); ok {
		switch data.Kind() {
		case jsonvalue.KindArray:
			env.Data = append(env.Data, data.Items()...)
		case jsonvalue.KindObject:
			if data.Len() > 0 {
				env.Data = append(env.Data, data)
			}
		}
	}

	env.Previous = stringAt(root, "paging", "previous")
	env.Next = stringAt(root, "paging", "next")
	env.Before = stringAt(root, "paging", "cursors", "before")
	env.After = stringAt(root, "paging", "cursors", "after")

	if summary, ok := root.Get("summary"); ok && summary.Kind() == jsonvalue.KindObject {
		env.Summary = summary
		if total, ok := summary.Get("total_count"); ok {
			if n, ok := int64Of(total); ok {
				env.TotalCount = n
				env.HasTotalCount = true
			}
		}
	}

	return env
}

// ParseGraphError returns the error carried by a Graph response, or nil when
// root holds none. Three shapes are recognized: the {"error":{...}} envelope,
// a bare {"error":"message"} and the legacy REST {"error_code":..,"error_msg":..}.
func ParseGraphError(status int, root jsonvalue.Value) *pkgerrs.GraphError {
	if root.Kind() != jsonvalue.KindObject {
		return nil
	}

	if errVal, ok := root.Get("error"); ok {
		switch errVal.Kind() {
		case jsonvalue.KindObject:
			code, _ := int64Of(fieldOf(errVal, "code"))
			subcode, _ := int64Of(fieldOf(errVal, "error_subcode"))
			e := pkgerrs.NewGraphError(status,
				stringAt(errVal, "type"),
				int(code), int(subcode),
				stringAt(errVal, "message"))
			e.UserTitle = stringAt(errVal, "error_user_title")
			e.UserMessage = stringAt(errVal, "error_user_msg")
			e.TraceID = stringAt(errVal, "fbtrace_id")
			if transient, ok := fieldOf(errVal, "is_transient").AsBool(); ok {
				e.Transient = transient
			}
			return e
		case jsonvalue.KindString:
			msg, _ := errVal.AsString()
			return pkgerrs.NewGraphError(status, "", 0, 0, msg)
		}
	}

	if codeVal, ok := root.Get("error_code"); ok {
		code, _ := int64Of(codeVal)
		msg := stringAt(root, "error_msg")
		if msg == "" {
			msg = stringAt(root, "error_description")
		}
		return pkgerrs.NewGraphError(status, "", int(code), 0, msg)
	}

	return nil
}

func fieldOf(v jsonvalue.Value, key string) jsonvalue.Value {
	out, _ := v.Get(key)
	return out
}

func stringAt(v jsonvalue.Value, keys ...string) string {
	out, ok := v.Path(keys...)
	if !ok {
		return ""
	}
	s, _ := out.AsString()
	return s
}

// int64Of accepts a number or a numeric string.
func int64Of(v jsonvalue.Value) (int64, bool) {
	var text string
	switch v.Kind() {
	case jsonvalue.KindNumber:
		n, _ := v.AsNumber()
		text = n.String()
	case jsonvalue.KindString:
		text, _ = v.AsString()
	default:
		return 0, false
	}

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(text, ParseFloatBitSize); err == nil {
		return int64(f), true
	}
	return 0, false
}
