package docstore

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Operator is a comparison operator of the native filter language.
type Operator string

const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
)

const (
	opAnd = "$and"
	opOr  = "$or"
)

// Matcher is a parsed filter.
type Matcher interface {
	Matches(doc Document) bool
}

type fieldNode struct {
	path  []string
	op    Operator
	value any
}

type logicalNode struct {
	op       string
	children []Matcher
}

// ParseFilter converts a native filter into a Matcher. Keys are processed in
// sorted order so that equal filters produce equal trees.
func ParseFilter(filter Document) (Matcher, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	root := &logicalNode{op: opAnd}
	for _, key := range keys {
		val := filter[key]
		if key == opAnd || key == opOr {
			list, ok := val.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: value for %s must be a list, got %T", ErrMalformedQuery, key, val)
			}
			if len(list) == 0 {
				return nil, fmt.Errorf("%w: %s requires at least one element", ErrMalformedQuery, key)
			}
			node := &logicalNode{op: key, children: make([]Matcher, 0, len(list))}
			for _, item := range list {
				sub, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: element of %s must be a document, got %T", ErrMalformedQuery, key, item)
				}
				child, err := ParseFilter(sub)
				if err != nil {
					return nil, err
				}
				node.children = append(node.children, child)
			}
			root.children = append(root.children, node)
			continue
		}
		if key == "" || strings.HasPrefix(key, "$") {
			return nil, fmt.Errorf("%w: unknown top-level operator %q", ErrMalformedQuery, key)
		}
		path := strings.Split(key, ".")

		ops, ok := val.(map[string]any)
		if !ok || !isOperatorMap(ops) {
			if err := checkOperand(key, OpEq, val); err != nil {
				return nil, err
			}
			root.children = append(root.children, &fieldNode{path, OpEq, val})
			continue
		}
		opNames := make([]string, 0, len(ops))
		for op := range ops {
			opNames = append(opNames, op)
		}
		sort.Strings(opNames)
		for _, op := range opNames {
			opVal := ops[op]
			switch Operator(op) {
			case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
			case OpIn:
				list, err := toList(opVal)
				if err != nil {
					return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedQuery, key, op, err)
				}
				opVal = list
			default:
				return nil, fmt.Errorf("%w: unknown operator %s on %s", ErrMalformedQuery, op, key)
			}
			if err := checkOperand(key, Operator(op), opVal); err != nil {
				return nil, err
			}
			root.children = append(root.children, &fieldNode{path, Operator(op), opVal})
		}
	}
	return root, nil
}

func isOperatorMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func checkOperand(key string, op Operator, v any) error {
	if op == OpIn {
		for _, item := range v.([]any) {
			if err := checkOperand(key, OpEq, item); err != nil {
				return err
			}
		}
		return nil
	}
	switch v.(type) {
	case map[string]any, []any:
		return fmt.Errorf("%w: %s %s: unsupported operand %T", ErrMalformedQuery, key, op, v)
	}
	return nil
}

func toList(v any) ([]any, error) {
	if list, ok := v.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, nil
}

func (n *fieldNode) Matches(doc Document) bool {
	actual, found := lookupPath(doc, n.path)
	switch n.op {
	case OpEq:
		return found && equalValues(actual, n.value)
	case OpNe:
		return !found || !equalValues(actual, n.value)
	case OpIn:
		if !found {
			return false
		}
		for _, v := range n.value.([]any) {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	}
	if !found {
		return false
	}
	cmp, ok := compareValues(actual, n.value)
	if !ok {
		return false
	}
	switch n.op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func (n *logicalNode) Matches(doc Document) bool {
	if n.op == opOr {
		for _, child := range n.children {
			if child.Matches(doc) {
				return true
			}
		}
		return false
	}
	for _, child := range n.children {
		if !child.Matches(doc) {
			return false
		}
	}
	return true
}

// pointID returns the id of a top-level _id equality condition, if any.
func pointID(m Matcher) (string, bool) {
	root, ok := m.(*logicalNode)
	if !ok || root.op != opAnd {
		return "", false
	}
	for _, child := range root.children {
		fn, ok := child.(*fieldNode)
		if ok && fn.op == OpEq && len(fn.path) == 1 && fn.path[0] == IDField {
			if id, ok := fn.value.(string); ok {
				return id, true
			}
		}
	}
	return "", false
}

func lookupPath(doc Document, path []string) (any, bool) {
	var cur any = doc
	for _, comp := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[comp]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func equalValues(a, b any) bool {
	cmp, ok := compareValues(a, b)
	return ok && cmp == 0
}

// compareValues orders two scalars of compatible types. Integers of any Go
// kind compare numerically with each other and with floats.
func compareValues(a, b any) (int, bool) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		default:
			return 1, true
		}
	}
	ai, aInt := toInt64(a)
	bi, bInt := toInt64(b)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1, true
		case ai > bi:
			return 1, true
		default:
			return 0, true
		}
	}
	af, aNum := toFloat64(a)
	bf, bNum := toFloat64(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > 1<<63-1 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
