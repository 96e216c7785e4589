package fbgraph

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jamesprial/go-fbgraph/pkg/mapper"
)

// Parameter is one named request parameter. Value may be any type the mapper
// can encode: strings are sent as is, everything else is sent as its JSON
// form, so a slice becomes ["a","b"] and a struct its bound fields.
type Parameter struct {
	Name  string
	Value any
}

// Param creates a request parameter.
func Param(name string, value any) Parameter {
	return Parameter{Name: name, Value: value}
}

// Fields selects the fields returned for an object, e.g.
// Fields("id", "name", "likes.limit(5){name}").
func Fields(fields ...string) Parameter {
	return Param("fields", strings.Join(fields, ","))
}

// Limit sets the page size of a connection.
func Limit(n int) Parameter {
	return Param("limit", strconv.Itoa(n))
}

// Summary asks Graph to include the summary object, which carries total_count.
func Summary() Parameter {
	return Param("summary", "true")
}

// Since restricts a connection to items newer than t.
func Since(t time.Time) Parameter {
	return Param("since", strconv.FormatInt(t.Unix(), 10))
}

// Until restricts a connection to items older than t.
func Until(t time.Time) Parameter {
	return Param("until", strconv.FormatInt(t.Unix(), 10))
}

// parameterNames lists the names of params in order.
func parameterNames(params []Parameter) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// parameterValue renders a parameter value as it is sent on the wire.
func parameterValue(m *mapper.Mapper, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case nil:
		return "null", nil
	}

	encoded, err := m.ToValue(v)
	if err != nil {
		return "", err
	}
	if s, ok := encoded.AsString(); ok {
		return s, nil
	}
	return encoded.String(), nil
}

// encodeParameters adds params to values.
func encodeParameters(m *mapper.Mapper, values url.Values, params []Parameter) error {
	for _, p := range params {
		s, err := parameterValue(m, p.Value)
		if err != nil {
			return err
		}
		values.Set(p.Name, s)
	}
	return nil
}
