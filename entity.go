package edoc

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/andreyvit/edoc/docstore"
)

// Doc is an untyped entity or a stored document.
type Doc = docstore.Document

// Encode converts an entity into the document stored for it. The entity is
// a Doc or a (pointer to a) struct whose msgpack field names match the
// declared fields. The key attribute becomes _id, integers become int64 and
// nil sub-documents are dropped. Values that do not match their declared
// kinds and undeclared fields fail with *TypeMismatchError.
func (scm *Schema) Encode(entity any) (Doc, error) {
	m, err := scm.toMap(entity)
	if err != nil {
		return nil, err
	}
	doc, err := scm.normalizeRoot(m)
	if err != nil {
		return nil, err
	}
	if err := scm.validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills dst (a *Doc or a pointer to a struct) from a stored document.
func (scm *Schema) Decode(doc Doc, dst any) error {
	m := make(map[string]any, len(doc))
	for k, v := range doc {
		nv, err := scm.normalizeValue(k, v)
		if err != nil {
			return err
		}
		if k == IDField {
			k = scm.key.name
		}
		m[k] = nv
	}
	if p, ok := dst.(*map[string]any); ok {
		*p = m
		return nil
	}
	raw, err := marshalMsgpack(m)
	if err != nil {
		return err
	}
	return unmarshalMsgpack(raw, dst)
}

func (scm *Schema) toMap(entity any) (map[string]any, error) {
	switch v := entity.(type) {
	case map[string]any:
		if v == nil {
			return nil, typeMismatchf(scm, "", KindGroup, nil, "nil entity")
		}
		return v, nil
	case *map[string]any:
		if v == nil || *v == nil {
			return nil, typeMismatchf(scm, "", KindGroup, nil, "nil entity")
		}
		return *v, nil
	}
	rv := reflect.ValueOf(entity)
	if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
		return nil, typeMismatchf(scm, "", KindGroup, nil, "nil entity")
	}
	raw, err := marshalMsgpack(entity)
	if err != nil {
		return nil, typeMismatchf(scm, "", KindGroup, entity, "%v", err)
	}
	var m map[string]any
	if err := unmarshalMsgpack(raw, &m); err != nil || m == nil {
		return nil, typeMismatchf(scm, "", KindGroup, entity, "%T does not encode as a document", entity)
	}
	return m, nil
}

func (scm *Schema) normalizeRoot(m map[string]any) (Doc, error) {
	doc := make(Doc, len(m))
	for k, v := range m {
		if k == scm.key.name {
			id, err := scm.normalizeID(v)
			if err != nil {
				return nil, err
			}
			if id != "" {
				doc[IDField] = id
			}
			continue
		}
		if k == IDField {
			return nil, typeMismatchf(scm, IDField, KindInvalid, v, "%s is reserved, the key attribute is %q", IDField, scm.key.name)
		}
		nv, err := scm.normalizeValue(k, v)
		if err != nil {
			return nil, err
		}
		if nv != nil {
			doc[k] = nv
		}
	}
	return doc, nil
}

func (scm *Schema) normalizeID(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", typeMismatchf(scm, scm.key.name, KindString, v, "")
}

func (scm *Schema) normalizeValue(path string, v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			nv, err := scm.normalizeValue(joinPath(path, k), sub)
			if err != nil {
				return nil, err
			}
			if nv != nil {
				out[k] = nv
			}
		}
		return out, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if f, err := v.Float64(); err == nil {
			return scm.normalizeFloat(path, f), nil
		}
		return v.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, typeMismatchf(scm, path, KindInt, v, "integer %d out of range", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return scm.normalizeFloat(path, rv.Float()), nil
	case reflect.String:
		return rv.String(), nil
	}
	return v, nil
}

// normalizeFloat turns whole floats into int64 where an int is declared, so
// that JSON input round-trips into integer struct fields.
func (scm *Schema) normalizeFloat(path string, f float64) any {
	if fld := scm.fieldsByPath[path]; fld != nil && fld.kind == KindInt {
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
	}
	return f
}
