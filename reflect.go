package edoc

import (
	"reflect"
	"strings"
	"sync"
)

var keyFieldCache sync.Map // keyFieldCacheKey → []int (nil if none)

type keyFieldCacheKey struct {
	typ  reflect.Type
	name string
}

// keyFieldIndex finds the string struct field that msgpack encodes under
// the given name.
func keyFieldIndex(typ reflect.Type, name string) []int {
	ck := keyFieldCacheKey{typ, name}
	if v, ok := keyFieldCache.Load(ck); ok {
		return v.([]int)
	}
	index := keyFieldIndexWithoutCache(typ, name)
	actual, _ := keyFieldCache.LoadOrStore(ck, index)
	return actual.([]int)
}

func keyFieldIndexWithoutCache(typ reflect.Type, name string) []int {
	if typ.Kind() != reflect.Struct {
		return nil
	}
	for _, sf := range reflect.VisibleFields(typ) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		if msgpackName(sf) == name && sf.Type.Kind() == reflect.String {
			return sf.Index
		}
	}
	return nil
}

func msgpackName(sf reflect.StructField) string {
	tag := sf.Tag.Get("msgpack")
	if tag == "-" {
		return ""
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return sf.Name
}

// setEntityKey stores id into the key field of *entity unless it is already set.
func setEntityKey(scm *Schema, entity any, id string) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return
	}
	index := keyFieldIndex(rv.Elem().Type(), scm.key.name)
	if index == nil {
		return
	}
	fv, err := rv.Elem().FieldByIndexErr(index)
	if err == nil && fv.CanSet() && fv.String() == "" {
		fv.SetString(id)
	}
}
