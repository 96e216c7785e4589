package mapper

import (
	"fmt"
	"reflect"
)

// MappingCompleter is implemented by types that want a callback once every
// bound field has been populated.
type MappingCompleter interface {
	OnMappingCompleted()
}

// MapperMappingCompleter is the variant of MappingCompleter that receives the
// mapper, e.g. to decode a raw field lazily with the same configuration.
type MapperMappingCompleter interface {
	OnMappingCompletedWithMapper(m *Mapper)
}

const (
	hookMethod       = "OnMappingCompleted"
	mapperHookMethod = "OnMappingCompletedWithMapper"
)

var (
	completerType       = reflect.TypeFor[MappingCompleter]()
	mapperCompleterType = reflect.TypeFor[MapperMappingCompleter]()
)

// hookPlan lists the struct levels whose hooks run after population.
type hookPlan struct {
	plain      []hookSite
	withMapper []hookSite
}

// hookSite is one hook invocation. path is the index path of the level whose
// method set has the hook; an empty path is the mapped value itself. When the
// hook reaches that level by promotion through embedded pointers, promoted is
// the index path, relative to the level, of the embedded level providing it.
type hookSite struct {
	path     []int
	promoted []int
}

func (p hookPlan) empty() bool {
	return len(p.plain) == 0 && len(p.withMapper) == 0
}

// resolveHooks validates hook signatures and locates hooks. When the type's
// method set has a hook, that hook is the most specific one and is the only one
// run; the embedded levels are walked only when promotion is blocked, e.g. by
// two embedded structs at the same depth that both declare the hook.
func resolveHooks(t reflect.Type) (hookPlan, error) {
	if err := validateHookSignatures(t, map[reflect.Type]bool{}); err != nil {
		return hookPlan{}, err
	}

	var plan hookPlan
	plan.plain = locateHooks(t, completerType, hookMethod, nil, map[reflect.Type]bool{t: true})
	plan.withMapper = locateHooks(t, mapperCompleterType, mapperHookMethod, nil, map[reflect.Type]bool{t: true})
	return plan, nil
}

func validateHookSignatures(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	pt := reflect.PointerTo(t)
	for _, check := range []struct {
		name  string
		iface reflect.Type
		want  string
	}{
		{hookMethod, completerType, "func()"},
		{mapperHookMethod, mapperCompleterType, "func(*mapper.Mapper)"},
	} {
		if _, ok := pt.MethodByName(check.name); ok && !pt.Implements(check.iface) {
			return definitionError(t, fmt.Sprintf("method %s has an unsupported signature, want %s", check.name, check.want))
		}
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		et := f.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() == reflect.Struct {
			if err := validateHookSignatures(et, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func locateHooks(t reflect.Type, iface reflect.Type, name string, prefix []int, visiting map[reflect.Type]bool) []hookSite {
	if reflect.PointerTo(t).Implements(iface) {
		return []hookSite{{path: prefix, promoted: promotionPath(t, name)}}
	}

	var sites []hookSite
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous || !f.IsExported() {
			continue
		}
		et := f.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct || visiting[et] {
			continue
		}
		visiting[et] = true
		index := append(append([]int(nil), prefix...), i)
		sites = append(sites, locateHooks(et, iface, name, index, visiting)...)
		delete(visiting, et)
	}
	return sites
}

// promotionPath follows the chain of embedded fields that can supply method
// name to t. It stops at the first level where no single exported embedded
// field has the method, which is the declaring level unless t shadows it.
// The path is empty when no embedded pointer lies on the chain.
func promotionPath(t reflect.Type, name string) []int {
	var path []int
	throughPointer := false
	seen := map[reflect.Type]bool{t: true}
	for {
		index := -1
		var next reflect.Type
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.Anonymous || !f.IsExported() {
				continue
			}
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() != reflect.Struct {
				continue
			}
			if _, ok := reflect.PointerTo(et).MethodByName(name); !ok {
				continue
			}
			if index >= 0 {
				// ambiguous at this depth: the method is not promoted from here
				index = -1
				break
			}
			index, next = i, et
			if f.Type.Kind() == reflect.Pointer {
				throughPointer = true
			}
		}
		if index < 0 || seen[next] {
			break
		}
		seen[next] = true
		path = append(path, index)
		t = next
	}
	if !throughPointer {
		return nil
	}
	return path
}

// runHooks invokes the plan against v, which must be addressable.
func (m *Mapper) runHooks(v reflect.Value, plan hookPlan) {
	for _, site := range plan.plain {
		if level, ok := site.level(v); ok {
			level.Interface().(MappingCompleter).OnMappingCompleted()
		}
	}
	for _, site := range plan.withMapper {
		if level, ok := site.level(v); ok {
			level.Interface().(MapperMappingCompleter).OnMappingCompletedWithMapper(m)
		}
	}
}

// level returns a pointer to the site's struct level. Embedded pointers on the
// promotion chain are allocated first so a promoted hook never runs on a nil
// receiver.
func (s hookSite) level(v reflect.Value) (reflect.Value, bool) {
	level, ok := levelPointer(v, s.path)
	if !ok {
		return reflect.Value{}, false
	}
	cur := level.Elem()
	for _, x := range s.promoted {
		f := cur.Field(x)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			f = f.Elem()
		}
		cur = f
	}
	return level, true
}

// levelPointer returns a pointer to the struct level at path. Embedded pointer
// levels that were never allocated are skipped.
func levelPointer(v reflect.Value, path []int) (reflect.Value, bool) {
	level, ok := fieldByIndexNoAlloc(v, path)
	if !ok {
		return reflect.Value{}, false
	}
	if level.Kind() == reflect.Pointer {
		return level, !level.IsNil()
	}
	return level.Addr(), true
}
