package edoc

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/andreyvit/edoc/docstore"
)

// Op is a comparison operator. Ordering operators compare strings
// lexicographically and integers numerically.
type Op = docstore.Operator

const (
	OpEq  = docstore.OpEq
	OpNe  = docstore.OpNe
	OpGt  = docstore.OpGt
	OpGte = docstore.OpGte
	OpLt  = docstore.OpLt
	OpLte = docstore.OpLte
	OpIn  = docstore.OpIn
)

type logicOp string

const (
	logicNone logicOp = ""
	logicAnd  logicOp = "$and"
	logicOr   logicOp = "$or"
)

// Filter is a predicate over the documents of one schema. Filters are
// immutable descriptions; they perform no I/O.
type Filter struct {
	schema   *Schema
	field    *Field
	op       Op
	value    any
	logic    logicOp
	children []*Filter
}

func Eq(f *Field, v any) (*Filter, error)  { return compare(f, OpEq, v) }
func Ne(f *Field, v any) (*Filter, error)  { return compare(f, OpNe, v) }
func Gt(f *Field, v any) (*Filter, error)  { return compare(f, OpGt, v) }
func Gte(f *Field, v any) (*Filter, error) { return compare(f, OpGte, v) }
func Lt(f *Field, v any) (*Filter, error)  { return compare(f, OpLt, v) }
func Lte(f *Field, v any) (*Filter, error) { return compare(f, OpLte, v) }

// In matches documents whose field equals any of values. An empty list
// matches nothing.
func In(f *Field, values ...any) (*Filter, error) {
	if f == nil {
		return nil, fmt.Errorf("In: nil field")
	}
	list := make([]any, len(values))
	for i, v := range values {
		nv, err := checkValue(f, v)
		if err != nil {
			return nil, err
		}
		list[i] = nv
	}
	return &Filter{schema: f.Schema(), field: f, op: OpIn, value: list}, nil
}

// All matches every document of the schema.
func All(scm *Schema) *Filter {
	return &Filter{schema: scm, logic: logicAnd}
}

// And matches documents matching every filter. All filters must belong to
// the same schema.
func And(filters ...*Filter) (*Filter, error) {
	return combine(logicAnd, filters)
}

// Or matches documents matching at least one filter.
func Or(filters ...*Filter) (*Filter, error) {
	return combine(logicOr, filters)
}

// Must panics if err is not nil. It lets filters be built inline:
//
//	edoc.Must(edoc.Eq(Products.SKU, "00e8da9b"))
func Must(f *Filter, err error) *Filter {
	if err != nil {
		panic(err)
	}
	return f
}

func compare(f *Field, op Op, v any) (*Filter, error) {
	if f == nil {
		return nil, fmt.Errorf("%s: nil field", op)
	}
	nv, err := checkValue(f, v)
	if err != nil {
		return nil, err
	}
	return &Filter{schema: f.Schema(), field: f, op: op, value: nv}, nil
}

func combine(logic logicOp, filters []*Filter) (*Filter, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("%s: no filters", logic)
	}
	for i, f := range filters {
		if f == nil {
			return nil, fmt.Errorf("%s: nil filter at position %d", logic, i)
		}
	}
	scm := filters[0].schema
	for _, f := range filters[1:] {
		if f.schema != scm {
			return nil, &QueryError{Collection: scm.name, Filter: f.String(), Err: ErrForeignField}
		}
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return &Filter{schema: scm, logic: logic, children: append([]*Filter(nil), filters...)}, nil
}

// checkValue verifies v against the declared kind of f and normalizes it.
func checkValue(f *Field, v any) (any, error) {
	scm := f.Schema()
	switch f.kind {
	case KindString:
		nv, err := scm.normalizeValue(f.path, v)
		if s, ok := nv.(string); err == nil && ok {
			return s, nil
		}
	case KindInt:
		if isFloat(v) {
			break
		}
		nv, err := scm.normalizeValue(f.path, v)
		if err != nil {
			return nil, err
		}
		if i, ok := nv.(int64); ok {
			return i, nil
		}
	}
	return nil, typeMismatchf(scm, f.path, f.kind, v, "")
}

// isFloat reports values that are not integers even when whole, including
// json.Numbers written in float syntax.
func isFloat(v any) bool {
	if n, ok := v.(json.Number); ok {
		_, err := n.Int64()
		return err != nil
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}

func (f *Filter) Schema() *Schema { return f.schema }

// Fields returns the fields the filter refers to, in order.
func (f *Filter) Fields() []*Field {
	var result []*Field
	f.walk(func(leaf *Filter) {
		result = append(result, leaf.field)
	})
	return result
}

func (f *Filter) walk(visit func(leaf *Filter)) {
	if f.field != nil {
		visit(f)
	}
	for _, child := range f.children {
		child.walk(visit)
	}
}

// Native translates the filter into the store's query language.
func (f *Filter) Native() Doc {
	if f.field != nil {
		return Doc{f.field.path: map[string]any{string(f.op): f.value}}
	}
	if len(f.children) == 0 {
		return Doc{}
	}
	list := make([]any, len(f.children))
	for i, child := range f.children {
		list[i] = child.Native()
	}
	return Doc{string(f.logic): list}
}

func (f *Filter) String() string {
	raw, err := json.Marshal(f.Native())
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(raw)
}
