package mapper

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
)

// fieldBinding ties one struct field to the JSON key it reads from and writes to.
type fieldBinding struct {
	// name is the dotted Go path of the field, e.g. "Named.ID" for promoted fields
	name      string
	key       string
	index     []int
	typ       reflect.Type
	omitEmpty bool
}

// typeBindings is the resolved binding table of one struct type.
type typeBindings struct {
	typ    reflect.Type
	fields []fieldBinding
	// keys lists each distinct JSON key once, in order of first declaration
	keys  []string
	byKey map[string][]int
	hooks hookPlan
	// err is a definition error reported every time the type is mapped
	err error
}

type cacheKey struct {
	typ reflect.Type
	tag string
}

// bindingCache memoizes binding tables and enum name sets. Entries are computed
// once and never invalidated.
type bindingCache struct {
	tables sync.Map // cacheKey -> *typeBindings
	enums  sync.Map // reflect.Type -> []string
	group  singleflight.Group
}

func newBindingCache() *bindingCache {
	return &bindingCache{}
}

func (c *bindingCache) lookup(t reflect.Type, tag string) *typeBindings {
	key := cacheKey{typ: t, tag: tag}
	if tb, ok := c.tables.Load(key); ok {
		return tb.(*typeBindings)
	}

	flight := fmt.Sprintf("%p|%s", t, tag)
	tb, _, _ := c.group.Do(flight, func() (any, error) {
		if tb, ok := c.tables.Load(key); ok {
			return tb, nil
		}
		built := buildBindings(t, tag)
		c.tables.Store(key, built)
		return built, nil
	})
	return tb.(*typeBindings)
}

func (c *bindingCache) enumNames(t reflect.Type) []string {
	if names, ok := c.enums.Load(t); ok {
		return names.([]string)
	}
	names := reflect.Zero(t).Interface().(Enum).EnumNames()
	c.enums.Store(t, names)
	return names
}

func buildBindings(t reflect.Type, tag string) *typeBindings {
	tb := &typeBindings{
		typ:   t,
		byKey: make(map[string][]int),
	}

	if err := collectFields(t, tag, nil, "", map[reflect.Type]bool{t: true}, tb); err != nil {
		tb.err = err
		return tb
	}

	for i, f := range tb.fields {
		if _, seen := tb.byKey[f.key]; !seen {
			tb.keys = append(tb.keys, f.key)
		}
		tb.byKey[f.key] = append(tb.byKey[f.key], i)
	}

	hooks, err := resolveHooks(t)
	if err != nil {
		tb.err = err
		return tb
	}
	tb.hooks = hooks
	return tb
}

// collectFields appends the bound fields of t to tb, expanding untagged embedded
// structs in place so promoted fields keep their declaration position.
func collectFields(t reflect.Type, tag string, prefix []int, path string, visiting map[reflect.Type]bool, tb *typeBindings) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		name := f.Name
		if path != "" {
			name = path + "." + f.Name
		}

		tagValue, tagged := f.Tag.Lookup(tag)
		if tagValue == "-" {
			continue
		}

		if f.Anonymous && !tagged {
			et := f.Type
			isPtr := et.Kind() == reflect.Pointer
			if isPtr {
				et = et.Elem()
			}
			if et.Kind() != reflect.Struct {
				continue
			}
			if isPtr && !f.IsExported() {
				// nil unexported pointers cannot be allocated through reflection
				continue
			}
			if visiting[et] {
				continue
			}
			visiting[et] = true
			if err := collectFields(et, tag, index, name, visiting, tb); err != nil {
				return err
			}
			delete(visiting, et)
			continue
		}

		if !tagged {
			continue
		}
		if !f.IsExported() {
			return definitionError(t, fmt.Sprintf("field %s carries a %q tag but is unexported", name, tag))
		}
		if err := checkSupported(f.Type, map[reflect.Type]bool{}); err != nil {
			return definitionError(t, fmt.Sprintf("field %s: %v", name, err))
		}

		key, opts := parseTag(tagValue)
		if key == "" {
			key = lowerFirst(f.Name)
		}

		tb.fields = append(tb.fields, fieldBinding{
			name:      name,
			key:       key,
			index:     index,
			typ:       f.Type,
			omitEmpty: opts.contains("omitempty"),
		})
	}
	return nil
}

// checkSupported rejects field types the mapper can never produce. Struct types
// are checked lazily when they are mapped.
func checkSupported(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] || isSpecialType(t) {
		return nil
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkSupported(t.Elem(), seen)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("map key type %s is not a string type", t.Key())
		}
		return checkSupported(t.Elem(), seen)
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return fmt.Errorf("interface type %s has methods", t)
		}
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Uintptr:
		return fmt.Errorf("type %s cannot be mapped from JSON", t)
	}
	return nil
}

type tagOptions string

func parseTag(tag string) (string, tagOptions) {
	key, opts, _ := strings.Cut(tag, ",")
	return strings.TrimSpace(key), tagOptions(opts)
}

func (o tagOptions) contains(name string) bool {
	s := string(o)
	for s != "" {
		var opt string
		opt, s, _ = strings.Cut(s, ",")
		if strings.TrimSpace(opt) == name {
			return true
		}
	}
	return false
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func definitionError(t reflect.Type, msg string) error {
	return &pkgerrs.MappingError{
		Kind:    pkgerrs.MappingDefinition,
		Type:    t.String(),
		Message: msg,
	}
}

// fieldByIndex walks index from v, allocating nil embedded pointers on the way.
func fieldByIndex(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// fieldByIndexNoAlloc walks index from v; ok is false when a nil embedded pointer is met.
func fieldByIndexNoAlloc(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
