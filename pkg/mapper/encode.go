package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"time"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// maxEncodeDepth bounds nesting while encoding; deeper values are almost always cyclic.
const maxEncodeDepth = 512

type encodeConfig struct {
	skipEmpty bool
}

// EncodeOption configures ToJSON and ToValue.
type EncodeOption func(*encodeConfig)

// SkipEmpty omits bound fields whose value is nil, an empty slice or map, or
// JSON null. Without it those fields are written as null, [] or {}.
func SkipEmpty() EncodeOption {
	return func(c *encodeConfig) {
		c.skipEmpty = true
	}
}

// ToJSON renders v as compact JSON text, writing each bound struct field under
// its JSON key. Map keys are written in sorted order.
func (m *Mapper) ToJSON(v any, opts ...EncodeOption) (string, error) {
	jv, err := m.ToValue(v, opts...)
	if err != nil {
		return "", err
	}
	return jv.String(), nil
}

// ToValue is ToJSON without the final rendering step.
func (m *Mapper) ToValue(v any, opts ...EncodeOption) (jsonvalue.Value, error) {
	var cfg encodeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if v == nil {
		return jsonvalue.Null(), nil
	}
	return m.encode(reflect.ValueOf(v), cfg, 0)
}

func (m *Mapper) encode(v reflect.Value, cfg encodeConfig, depth int) (jsonvalue.Value, error) {
	if depth > maxEncodeDepth {
		return jsonvalue.Value{}, definitionError(v.Type(), fmt.Sprintf("value is nested deeper than %d levels", maxEncodeDepth))
	}
	t := v.Type()

	switch t {
	case valueType:
		return v.Interface().(jsonvalue.Value), nil
	case rawMessageType:
		raw := v.Interface().(json.RawMessage)
		if len(raw) == 0 {
			return jsonvalue.Null(), nil
		}
		jv, err := jsonvalue.Parse(string(raw))
		if err != nil {
			return jsonvalue.Value{}, &pkgerrs.MappingError{
				Kind:  pkgerrs.FieldConversion,
				Type:  t.String(),
				Value: string(raw),
				Err:   err,
			}
		}
		return jv, nil
	case timeType:
		tv := v.Interface().(time.Time)
		if tv.IsZero() {
			return jsonvalue.Null(), nil
		}
		return jsonvalue.String(tv.Format(m.timeLayouts[0])), nil
	case bigIntType:
		bi := addressable(v).Interface().(*big.Int)
		return jsonvalue.Number(json.Number(bi.String())), nil
	case bigFloatType:
		bf := addressable(v).Interface().(*big.Float)
		if bf.IsInf() {
			return jsonvalue.Null(), nil
		}
		return jsonvalue.Number(json.Number(bf.Text('g', -1))), nil
	case bigRatType:
		r := addressable(v).Interface().(*big.Rat)
		if r.IsInt() {
			return jsonvalue.Number(json.Number(r.Num().String())), nil
		}
		return jsonvalue.String(r.RatString()), nil
	}

	if isEnum(t) {
		name, ok := m.enumName(v)
		if !ok {
			return jsonvalue.Null(), nil
		}
		return jsonvalue.String(name), nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return jsonvalue.Null(), nil
		}
		return m.encode(v.Elem(), cfg, depth+1)

	case reflect.Interface:
		if v.IsNil() {
			return jsonvalue.Null(), nil
		}
		return m.encode(v.Elem(), cfg, depth+1)

	case reflect.String:
		return jsonvalue.String(v.String()), nil

	case reflect.Bool:
		return jsonvalue.Bool(v.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return jsonvalue.Int(v.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return jsonvalue.Uint(v.Uint()), nil

	case reflect.Float32:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return jsonvalue.Null(), nil
		}
		// shortest float32 literal, so 0.1 stays 0.1
		f, _ = strconv.ParseFloat(strconv.FormatFloat(f, 'g', -1, 32), 64)
		return jsonvalue.Float(f), nil

	case reflect.Float64:
		return jsonvalue.Float(v.Float()), nil

	case reflect.Slice:
		if v.IsNil() {
			return jsonvalue.Null(), nil
		}
		return m.encodeList(v, cfg, depth)

	case reflect.Array:
		return m.encodeList(v, cfg, depth)

	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return jsonvalue.Value{}, definitionError(t, fmt.Sprintf("map key type %s is not a string type", t.Key()))
		}
		if v.IsNil() {
			return jsonvalue.Null(), nil
		}
		return m.encodeMap(v, cfg, depth)

	case reflect.Struct:
		return m.encodeStruct(v, cfg, depth)
	}

	return jsonvalue.Value{}, definitionError(t, fmt.Sprintf("kind %s cannot be written as JSON", t.Kind()))
}

func (m *Mapper) encodeList(v reflect.Value, cfg encodeConfig, depth int) (jsonvalue.Value, error) {
	items := make([]jsonvalue.Value, v.Len())
	for i := range items {
		item, err := m.encode(v.Index(i), cfg, depth+1)
		if err != nil {
			return jsonvalue.Value{}, withElement(err, i)
		}
		items[i] = item
	}
	return jsonvalue.Array(items...), nil
}

func (m *Mapper) encodeMap(v reflect.Value, cfg encodeConfig, depth int) (jsonvalue.Value, error) {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})

	members := make([]jsonvalue.Member, 0, len(keys))
	for _, k := range keys {
		item, err := m.encode(v.MapIndex(k), cfg, depth+1)
		if err != nil {
			return jsonvalue.Value{}, withElement(err, k.String())
		}
		members = append(members, jsonvalue.Member{Key: k.String(), Value: item})
	}
	return jsonvalue.Object(members...), nil
}

func (m *Mapper) encodeStruct(v reflect.Value, cfg encodeConfig, depth int) (jsonvalue.Value, error) {
	t := v.Type()
	tb := m.cache.lookup(t, m.tagName)
	if tb.err != nil {
		return jsonvalue.Value{}, tb.err
	}

	members := make([]jsonvalue.Member, 0, len(tb.keys))
	for _, key := range tb.keys {
		var (
			chosen jsonvalue.Value
			found  bool
			omit   bool
		)
		// Among fields sharing a key, the first non-empty one in declaration order wins.
		for _, fi := range tb.byKey[key] {
			fb := tb.fields[fi]
			fv, ok := fieldByIndexNoAlloc(v, fb.index)
			if !ok {
				continue
			}
			jv, err := m.encode(fv, cfg, depth+1)
			if err != nil {
				return jsonvalue.Value{}, withField(err, t, fb)
			}
			empty := isEmptyEncoded(fv, jv)
			if !found {
				chosen, found, omit = jv, true, empty && (cfg.skipEmpty || fb.omitEmpty)
			}
			if !empty {
				chosen, omit = jv, false
				break
			}
		}
		if !found || omit {
			continue
		}
		members = append(members, jsonvalue.Member{Key: key, Value: chosen})
	}
	return jsonvalue.Object(members...), nil
}

// isEmptyEncoded reports whether a field counts as empty for SkipEmpty and omitempty.
func isEmptyEncoded(fv reflect.Value, jv jsonvalue.Value) bool {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if fv.IsNil() {
			return true
		}
	case reflect.Slice, reflect.Map:
		return fv.Len() == 0
	}
	return jv.IsNull()
}

// addressable returns a pointer to v, copying it when v cannot be addressed.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}
