package mapper

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
	"github.com/jamesprial/go-fbgraph/pkg/jsonvalue"
)

// DefaultTimeLayouts are the date formats the Graph API and the legacy REST API emit.
var DefaultTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"01/02/2006",
	"01/02",
	"2006-01",
	"2006",
}

var (
	valueType      = reflect.TypeFor[jsonvalue.Value]()
	rawMessageType = reflect.TypeFor[json.RawMessage]()
	timeType       = reflect.TypeFor[time.Time]()
	bigIntType     = reflect.TypeFor[big.Int]()
	bigFloatType   = reflect.TypeFor[big.Float]()
	bigRatType     = reflect.TypeFor[big.Rat]()
)

// bigFloatPrec is the mantissa precision of big.Float targets.
const bigFloatPrec = 256

func isSpecialType(t reflect.Type) bool {
	switch t {
	case valueType, rawMessageType, timeType, bigIntType, bigFloatType, bigRatType:
		return true
	}
	return isEnum(t)
}

// assign converts v into dst, which must be settable. dst is only written on success.
func (m *Mapper) assign(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()

	switch t {
	case valueType:
		dst.Set(reflect.ValueOf(v))
		return nil
	case rawMessageType:
		if v.IsNull() {
			dst.Set(reflect.Zero(t))
			return nil
		}
		dst.Set(reflect.ValueOf(json.RawMessage(v.String())))
		return nil
	}

	if isEnum(t) {
		if ev, ok := m.enumFrom(t, v); ok {
			dst.Set(ev)
		}
		return nil
	}

	if v.IsNull() {
		dst.Set(reflect.Zero(t))
		return nil
	}

	switch t {
	case timeType:
		tv, err := m.parseTime(v)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.Set(reflect.ValueOf(tv))
		return nil
	case bigIntType, bigFloatType, bigRatType:
		return m.assignBig(dst, v)
	}

	switch t.Kind() {
	case reflect.Pointer:
		if isEnum(t.Elem()) {
			if ev, ok := m.enumFrom(t.Elem(), v); ok {
				p := reflect.New(t.Elem())
				p.Elem().Set(ev)
				dst.Set(p)
			}
			return nil
		}
		p := reflect.New(t.Elem())
		if err := m.assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil

	case reflect.Interface:
		if t.NumMethod() != 0 {
			return definitionError(t, "interface types with methods cannot be mapped")
		}
		dst.Set(reflect.ValueOf(v.Interface()))
		return nil

	case reflect.String:
		dst.SetString(stringForm(v))
		return nil

	case reflect.Bool:
		b, err := boolForm(v)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.SetBool(b)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if t == reflect.TypeFor[time.Duration]() {
			return m.assignDuration(dst, v)
		}
		i, err := intForm(v)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := uintForm(v)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.SetUint(u)
		return nil

	case reflect.Float32, reflect.Float64:
		f, err := floatForm(v)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.SetFloat(f)
		return nil

	case reflect.Slice:
		return m.assignSlice(dst, v)

	case reflect.Array:
		return m.assignArray(dst, v)

	case reflect.Map:
		return m.assignMap(dst, v)

	case reflect.Struct:
		return m.assignStruct(dst, v)
	}

	return definitionError(t, fmt.Sprintf("kind %s cannot be mapped from JSON", t.Kind()))
}

func (m *Mapper) enumFrom(t reflect.Type, v jsonvalue.Value) (reflect.Value, bool) {
	name, ok := v.AsString()
	if !ok {
		return reflect.Value{}, false
	}
	return m.enumValue(t, name)
}

func (m *Mapper) assignSlice(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()

	switch v.Kind() {
	case jsonvalue.KindArray:
	case jsonvalue.KindObject:
		// The API sometimes sends {} where an empty list belongs.
		if v.Len() == 0 {
			dst.Set(reflect.MakeSlice(t, 0, 0))
			return nil
		}
		return mismatchError(t, v, "JSON is an object but is being mapped as a list")
	default:
		return mismatchError(t, v, fmt.Sprintf("JSON %s cannot be mapped as a list", v.Kind()))
	}

	items := v.Items()
	out := reflect.MakeSlice(t, len(items), len(items))
	for i, item := range items {
		elem := reflect.New(t.Elem()).Elem()
		if err := m.assign(elem, item); err != nil {
			if m.canSwallow(err) {
				m.logger.Warn("swallowed JSON list element failure", "type", t.String(), "index", i, "error", err)
				continue
			}
			return withElement(err, i)
		}
		out.Index(i).Set(elem)
	}
	dst.Set(out)
	return nil
}

func (m *Mapper) assignArray(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()
	if v.Kind() != jsonvalue.KindArray {
		return mismatchError(t, v, fmt.Sprintf("JSON %s cannot be mapped as an array", v.Kind()))
	}

	items := v.Items()
	if len(items) > t.Len() {
		return mismatchError(t, v, fmt.Sprintf("JSON array has %d elements, %s holds %d", len(items), t, t.Len()))
	}

	out := reflect.New(t).Elem()
	for i, item := range items {
		elem := reflect.New(t.Elem()).Elem()
		if err := m.assign(elem, item); err != nil {
			if m.canSwallow(err) {
				m.logger.Warn("swallowed JSON array element failure", "type", t.String(), "index", i, "error", err)
				continue
			}
			return withElement(err, i)
		}
		out.Index(i).Set(elem)
	}
	dst.Set(out)
	return nil
}

func (m *Mapper) assignMap(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()
	if t.Key().Kind() != reflect.String {
		return definitionError(t, fmt.Sprintf("map key type %s is not a string type", t.Key()))
	}

	switch v.Kind() {
	case jsonvalue.KindObject:
	case jsonvalue.KindArray:
		// PHP-backed endpoints encode an empty map as [].
		if v.Len() == 0 {
			dst.Set(reflect.MakeMap(t))
			return nil
		}
		return mismatchError(t, v, "JSON is an array but is being mapped as a map")
	default:
		return mismatchError(t, v, fmt.Sprintf("JSON %s cannot be mapped as a map", v.Kind()))
	}

	out := reflect.MakeMapWithSize(t, v.Len())
	for _, member := range v.Members() {
		elem := reflect.New(t.Elem()).Elem()
		if err := m.assign(elem, member.Value); err != nil {
			if m.canSwallow(err) {
				m.logger.Warn("swallowed JSON map entry failure", "type", t.String(), "key", member.Key, "error", err)
			} else {
				return withElement(err, member.Key)
			}
		}
		out.SetMapIndex(reflect.ValueOf(member.Key).Convert(t.Key()), elem)
	}
	dst.Set(out)
	return nil
}

func (m *Mapper) assignStruct(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()

	switch v.Kind() {
	case jsonvalue.KindObject:
	case jsonvalue.KindArray:
		if v.Len() == 0 {
			v = jsonvalue.Object()
			break
		}
		return mismatchError(t, v, "JSON is an array but is being mapped as an object")
	default:
		return mismatchError(t, v, fmt.Sprintf("JSON %s cannot be mapped as an object", v.Kind()))
	}

	tb := m.cache.lookup(t, m.tagName)
	if tb.err != nil {
		return tb.err
	}

	out := reflect.New(t).Elem()
	for _, key := range tb.keys {
		raw, ok := v.Get(key)
		if !ok {
			continue
		}
		bound := tb.byKey[key]
		for _, fi := range bound {
			fb := tb.fields[fi]
			tmp := reflect.New(fb.typ).Elem()
			if err := m.assign(tmp, raw); err != nil {
				err = withField(err, t, fb)
				switch {
				case len(bound) > 1 && isDataError(err):
					m.logger.Debug("skipped field sharing a JSON key with other fields",
						"type", t.String(), "field", fb.name, "key", key, "error", err)
					continue
				case m.canSwallow(err):
					m.logger.Warn("swallowed JSON field failure",
						"type", t.String(), "field", fb.name, "key", key, "error", err)
					continue
				}
				return err
			}
			fieldByIndex(out, fb.index).Set(tmp)
		}
	}

	if !tb.hooks.empty() {
		m.runHooks(out, tb.hooks)
	}
	dst.Set(out)
	return nil
}

func (m *Mapper) assignBig(dst reflect.Value, v jsonvalue.Value) error {
	t := dst.Type()
	text, ok := numericText(v)
	if !ok {
		return conversionError(t, v, fmt.Sprintf("JSON %s is not a number", v.Kind()))
	}

	switch t {
	case bigIntType:
		bi, ok := new(big.Int).SetString(text, 10)
		if !ok {
			bf, _, err := big.ParseFloat(text, 10, bigFloatPrec, big.ToZero)
			if err != nil {
				return conversionError(t, v, err.Error())
			}
			bi, _ = bf.Int(nil)
		}
		dst.Set(reflect.ValueOf(bi).Elem())
	case bigFloatType:
		bf, _, err := big.ParseFloat(text, 10, bigFloatPrec, big.ToNearestEven)
		if err != nil {
			return conversionError(t, v, err.Error())
		}
		dst.Set(reflect.ValueOf(bf).Elem())
	case bigRatType:
		r, ok := new(big.Rat).SetString(text)
		if !ok {
			return conversionError(t, v, "not a decimal number")
		}
		dst.Set(reflect.ValueOf(r).Elem())
	}
	return nil
}

func (m *Mapper) assignDuration(dst reflect.Value, v jsonvalue.Value) error {
	if s, ok := v.AsString(); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			dst.SetInt(int64(d))
			return nil
		}
	}
	f, err := floatForm(v)
	if err != nil {
		return conversionError(dst.Type(), v, err.Error())
	}
	dst.SetInt(int64(f * float64(time.Second)))
	return nil
}

func (m *Mapper) parseTime(v jsonvalue.Value) (time.Time, error) {
	if n, ok := v.AsNumber(); ok {
		return unixTime(n.String())
	}
	s, ok := v.AsString()
	if !ok {
		return time.Time{}, fmt.Errorf("JSON %s is not a date", v.Kind())
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range m.timeLayouts {
		if tv, err := time.Parse(layout, s); err == nil {
			return tv, nil
		}
	}
	if tv, err := unixTime(s); err == nil {
		return tv, nil
	}
	return time.Time{}, fmt.Errorf("%q matches none of the configured date layouts", s)
}

func unixTime(text string) (time.Time, error) {
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(i, 0).UTC(), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a unix timestamp", text)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

// stringForm renders any JSON value as a string: strings as themselves, other
// scalars as their literal, arrays and objects as raw JSON text.
func stringForm(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.KindString:
		s, _ := v.AsString()
		return s
	case jsonvalue.KindNumber:
		n, _ := v.AsNumber()
		return n.String()
	}
	return v.String()
}

func numericText(v jsonvalue.Value) (string, bool) {
	if n, ok := v.AsNumber(); ok {
		return n.String(), true
	}
	if s, ok := v.AsString(); ok {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return "", false
}

func boolForm(v jsonvalue.Value) (bool, error) {
	if b, ok := v.AsBool(); ok {
		return b, nil
	}
	if s, ok := v.AsString(); ok {
		return strconv.ParseBool(strings.TrimSpace(s))
	}
	if n, ok := v.AsNumber(); ok {
		f, err := n.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
	return false, fmt.Errorf("JSON %s is not a boolean", v.Kind())
}

// intForm parses an integral value. Fractions are truncated toward zero.
func intForm(v jsonvalue.Value) (int64, error) {
	text, ok := numericText(v)
	if !ok {
		return 0, fmt.Errorf("JSON %s is not a number", v.Kind())
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", text)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%q overflows int64", text)
	}
	return int64(f), nil
}

func uintForm(v jsonvalue.Value) (uint64, error) {
	text, ok := numericText(v)
	if !ok {
		return 0, fmt.Errorf("JSON %s is not a number", v.Kind())
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return u, nil
	}
	i, err := intForm(v)
	if err != nil {
		return 0, err
	}
	return uint64(i), nil
}

func floatForm(v jsonvalue.Value) (float64, error) {
	text, ok := numericText(v)
	if !ok {
		return 0, fmt.Errorf("JSON %s is not a number", v.Kind())
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", text)
	}
	return f, nil
}

func conversionError(t reflect.Type, v jsonvalue.Value, msg string) error {
	return &pkgerrs.MappingError{
		Kind:    pkgerrs.FieldConversion,
		Type:    t.String(),
		Value:   v.String(),
		Message: msg,
	}
}

func mismatchError(t reflect.Type, v jsonvalue.Value, msg string) error {
	return &pkgerrs.MappingError{
		Kind:    pkgerrs.TypeMismatch,
		Type:    t.String(),
		Value:   v.String(),
		Message: msg,
	}
}

func isDataError(err error) bool {
	me, ok := err.(*pkgerrs.MappingError)
	return ok && me.Kind != pkgerrs.MappingDefinition
}

// withField records which struct field a nested failure belongs to. Field
// paths accumulate from the inside out, e.g. "Location.Latitude".
func withField(err error, owner reflect.Type, fb fieldBinding) error {
	me, ok := err.(*pkgerrs.MappingError)
	if !ok || me.Kind == pkgerrs.MappingDefinition {
		return err
	}
	if me.Key == "" {
		me.Key = fb.key
		me.Type = owner.String()
	}
	switch {
	case me.Field == "":
		me.Field = fb.name
	case strings.HasPrefix(me.Field, "["):
		me.Field = fb.name + me.Field
	default:
		me.Field = fb.name + "." + me.Field
	}
	return me
}

func withElement(err error, at any) error {
	me, ok := err.(*pkgerrs.MappingError)
	if !ok || me.Kind == pkgerrs.MappingDefinition {
		return err
	}
	var elem string
	switch k := at.(type) {
	case int:
		elem = fmt.Sprintf("[%d]", k)
	default:
		elem = fmt.Sprintf("[%q]", k)
	}
	if me.Field == "" || strings.HasPrefix(me.Field, "[") {
		me.Field = elem + me.Field
	} else {
		me.Field = elem + "." + me.Field
	}
	return me
}
