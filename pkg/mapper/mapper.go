// Package mapper converts between JSON text and Go values using struct tags
// that name the JSON key each field binds to.
//
// A field is bound when it carries the mapper's tag (by default "facebook"):
//
//	type User struct {
//		ID       string   `facebook:"id"`
//		Hometown string   `facebook:"hometown"`
//		Location *Place   `facebook:"hometown"`
//		Likes    []string `facebook:""`
//	}
//
// An empty tag binds to the field name with its first letter lowercased.
// Unlike encoding/json, several fields may bind to the same key and each is
// populated with its own conversion, so a raw string field and a structured
// field can both read "hometown". Fields of untagged embedded structs are
// bound as if declared on the outer type, at any depth.
//
// Mapping never mutates a value the caller already holds: each call builds a
// fresh value and returns it only when mapping succeeded.
package mapper

import (
	"log/slog"
	"reflect"
	"strings"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// DefaultTagName is the struct tag read by mappers created without WithTagName.
const DefaultTagName = "facebook"

// Mapper converts JSON to Go values and back. A Mapper is safe for concurrent
// use; its binding cache is shared by every copy derived from it.
type Mapper struct {
	tagName     string
	logger      *slog.Logger
	swallow     bool
	timeLayouts []string
	cache       *bindingCache
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithTagName selects the struct tag that declares JSON keys.
func WithTagName(name string) Option {
	return func(m *Mapper) {
		if name != "" {
			m.tagName = name
		}
	}
}

// WithLogger sets the logger used for swallowed and multi-binding failures.
// Without it a Mapper logs to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTimeLayouts replaces the layouts tried, in order, when a JSON string is
// mapped to time.Time. The first layout is also used by ToJSON.
func WithTimeLayouts(layouts ...string) Option {
	return func(m *Mapper) {
		if len(layouts) > 0 {
			m.timeLayouts = append([]string(nil), layouts...)
		}
	}
}

// WithSwallowErrors enables swallow mode; see Swallowing.
func WithSwallowErrors() Option {
	return func(m *Mapper) {
		m.swallow = true
	}
}

// New returns a Mapper with the given options.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		tagName:     DefaultTagName,
		logger:      slog.Default(),
		timeLayouts: append([]string(nil), DefaultTimeLayouts...),
		cache:       newBindingCache(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Swallowing returns a copy of m in swallow mode. In swallow mode a field,
// list element or map entry that fails to convert is left at its zero value
// and logged at WARN, and a document that cannot be mapped at all yields the
// zero value with a nil error. Blank input, a nil target type and invalid
// mapping definitions still fail.
func (m *Mapper) Swallowing() *Mapper {
	cp := *m
	cp.swallow = true
	return &cp
}

// Swallows reports whether m is in swallow mode.
func (m *Mapper) Swallows() bool { return m.swallow }

// TagName returns the struct tag m reads.
func (m *Mapper) TagName() string { return m.tagName }

// Object maps JSON text to a new value of type T.
func Object[T any](m *Mapper, text string) (T, error) {
	var zero T
	v, err := m.toObject(text, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, _ := v.Interface().(T)
	return out, nil
}

// List maps JSON text to a new slice of T. The result is never nil.
func List[T any](m *Mapper, text string) ([]T, error) {
	v, err := m.toList(text, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return v.Interface().([]T), nil
}

// ObjectFromValue maps an already parsed JSON value to a new value of type T.
func ObjectFromValue[T any](m *Mapper, v jsonvalue.Value) (T, error) {
	var zero T
	rv, err := m.fromValue(v, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, _ := rv.Interface().(T)
	return out, nil
}

// ListFromValue maps an already parsed JSON value to a new slice of T.
func ListFromValue[T any](m *Mapper, v jsonvalue.Value) ([]T, error) {
	rv, err := m.listFromValue(v, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return rv.Interface().([]T), nil
}

// ToObject maps JSON text to a new value of type t and returns it as an interface.
func (m *Mapper) ToObject(text string, t reflect.Type) (any, error) {
	v, err := m.toObject(text, t)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ToList maps JSON text to a new slice whose element type is elem.
func (m *Mapper) ToList(text string, elem reflect.Type) (any, error) {
	v, err := m.toList(text, elem)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func (m *Mapper) toObject(text string, t reflect.Type) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, nilTypeError()
	}
	root, err := m.parse(text, t)
	if err != nil {
		return m.swallowTop(t, err)
	}
	return m.fromValue(root, t)
}

func (m *Mapper) toList(text string, elem reflect.Type) (reflect.Value, error) {
	if elem == nil {
		return reflect.Value{}, nilTypeError()
	}
	root, err := m.parse(text, reflect.SliceOf(elem))
	if err != nil {
		return m.swallowTop(reflect.SliceOf(elem), err)
	}
	return m.listFromValue(root, elem)
}

// Parse parses JSON text into a jsonvalue.Value, reporting failures as
// EmptyInput or MalformedJSON mapping errors. Swallow mode does not apply.
func (m *Mapper) Parse(text string) (jsonvalue.Value, error) {
	return m.parse(text, valueType)
}

func (m *Mapper) parse(text string, t reflect.Type) (jsonvalue.Value, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return jsonvalue.Value{}, &pkgerrs.MappingError{
			Kind:    pkgerrs.EmptyInput,
			Type:    t.String(),
			Message: "JSON is blank, there is nothing to map",
		}
	}
	root, err := jsonvalue.Parse(trimmed)
	if err != nil {
		return jsonvalue.Value{}, &pkgerrs.MappingError{
			Kind:  pkgerrs.MalformedJSON,
			Type:  t.String(),
			Value: trimmed,
			Err:   err,
		}
	}
	return root, nil
}

func (m *Mapper) fromValue(root jsonvalue.Value, t reflect.Type) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, nilTypeError()
	}
	out := reflect.New(t).Elem()

	switch root.Kind() {
	case jsonvalue.KindArray:
		if !acceptsArray(t) {
			if root.Len() == 0 {
				return emptyShell(t), nil
			}
			return m.swallowTop(t, &pkgerrs.MappingError{
				Kind:    pkgerrs.TypeMismatch,
				Type:    t.String(),
				Value:   root.String(),
				Message: "JSON is an array but is being mapped as an object, map it as a list instead",
			})
		}
	case jsonvalue.KindBool:
		if b, _ := root.AsBool(); !b && !acceptsBool(t) {
			return out, nil
		}
	}

	if err := m.assign(out, root); err != nil {
		return m.swallowTop(t, err)
	}
	return out, nil
}

func (m *Mapper) listFromValue(root jsonvalue.Value, elem reflect.Type) (reflect.Value, error) {
	if elem == nil {
		return reflect.Value{}, nilTypeError()
	}
	st := reflect.SliceOf(elem)

	switch root.Kind() {
	case jsonvalue.KindNull:
		return reflect.MakeSlice(st, 0, 0), nil
	case jsonvalue.KindBool:
		if b, _ := root.AsBool(); !b {
			return reflect.MakeSlice(st, 0, 0), nil
		}
	}

	out := reflect.New(st).Elem()
	if err := m.assign(out, root); err != nil {
		return m.swallowList(st, err)
	}
	return out, nil
}

func (m *Mapper) swallowTop(t reflect.Type, err error) (reflect.Value, error) {
	if !m.canSwallow(err) {
		return reflect.Value{}, err
	}
	m.logger.Warn("swallowed JSON mapping failure", "type", t.String(), "error", err)
	return reflect.New(t).Elem(), nil
}

func (m *Mapper) swallowList(st reflect.Type, err error) (reflect.Value, error) {
	if !m.canSwallow(err) {
		return reflect.Value{}, err
	}
	m.logger.Warn("swallowed JSON list mapping failure", "type", st.String(), "error", err)
	return reflect.MakeSlice(st, 0, 0), nil
}

func (m *Mapper) canSwallow(err error) bool {
	if !m.swallow {
		return false
	}
	me, ok := err.(*pkgerrs.MappingError)
	if !ok {
		return true
	}
	return me.Kind != pkgerrs.EmptyInput && me.Kind != pkgerrs.MappingDefinition
}

func nilTypeError() error {
	return &pkgerrs.MappingError{
		Kind:    pkgerrs.MappingDefinition,
		Message: "target type is nil",
	}
}

// acceptsArray reports whether a JSON array is a legal value for t.
func acceptsArray(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == valueType || t == rawMessageType {
		return true
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Interface, reflect.String:
		return true
	}
	return false
}

func acceptsBool(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == valueType || t == rawMessageType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.Interface, reflect.String:
		return true
	}
	return false
}

// emptyShell is the value produced for an empty JSON array mapped to a
// non-list type: an allocated zero value for pointers, the zero value otherwise.
func emptyShell(t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	if t.Kind() == reflect.Pointer {
		out.Set(reflect.New(t.Elem()))
	}
	return out
}
