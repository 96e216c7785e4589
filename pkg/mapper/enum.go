package mapper

import "reflect"

// Enum is implemented by named string or integer types whose JSON form is one
// of a fixed set of names. For string types the name is the value itself; for
// integer types the value is the name's index in EnumNames plus one, leaving
// zero as the unset value:
//
//	type Level int
//
//	const (
//		LevelLow Level = iota + 1
//		LevelHigh
//	)
//
//	func (Level) EnumNames() []string { return []string{"LOW", "HIGH"} }
//
// A JSON name that is not in EnumNames leaves the field unset instead of
// failing, so values added to the API later do not break older clients. An
// unset integer enum encodes as null.
type Enum interface {
	EnumNames() []string
}

var enumType = reflect.TypeFor[Enum]()

func isEnum(t reflect.Type) bool {
	if !t.Implements(enumType) {
		return false
	}
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// enumValue resolves name to a value of enum type t; ok is false for unknown names.
func (m *Mapper) enumValue(t reflect.Type, name string) (reflect.Value, bool) {
	for i, known := range m.cache.enumNames(t) {
		if known != name {
			continue
		}
		v := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.String:
			v.SetString(name)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			v.SetInt(int64(i) + 1)
		default:
			v.SetUint(uint64(i) + 1)
		}
		return v, true
	}
	return reflect.Value{}, false
}

// enumName returns the JSON name of enum value v; ok is false when v has none.
func (m *Mapper) enumName(v reflect.Value) (string, bool) {
	names := m.cache.enumNames(v.Type())
	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i := v.Int(); i >= 1 && i <= int64(len(names)) {
			return names[i-1], true
		}
	default:
		if i := v.Uint(); i >= 1 && i <= uint64(len(names)) {
			return names[i-1], true
		}
	}
	return "", false
}
