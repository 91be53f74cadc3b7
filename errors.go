package edoc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotOpen      = errors.New("session is not open")
	ErrClosed       = errors.New("session is closed")
	ErrForeignField = errors.New("field belongs to another schema")
	ErrConsumed     = errors.New("cursor already consumed")
	ErrInvalidName  = errors.New("invalid field name")
)

// DuplicateFieldError is reported when a schema or a group declares the same
// name twice.
type DuplicateFieldError struct {
	Schema string
	Scope  string // path of the group, empty for the schema root
	Name   string
}

func (e *DuplicateFieldError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("%s: duplicate field %q", e.Schema, e.Name)
	}
	return fmt.Sprintf("%s.%s: duplicate field %q", e.Schema, e.Scope, e.Name)
}

// TypeMismatchError is reported when a value does not match the declared kind
// of a field, or when a document carries fields its schema does not declare.
type TypeMismatchError struct {
	Schema string
	Path   string
	Want   Kind
	Value  any
	Msg    string
}

func typeMismatchf(scm *Schema, path string, want Kind, value any, format string, args ...any) error {
	return &TypeMismatchError{scm.name, path, want, value, fmt.Sprintf(format, args...)}
}

func (e *TypeMismatchError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Schema)
	if e.Path != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Path)
	}
	buf.WriteString(": ")
	if e.Msg != "" {
		buf.WriteString(e.Msg)
	} else {
		fmt.Fprintf(&buf, "expected %v, got %T %v", e.Want, e.Value, e.Value)
	}
	return buf.String()
}

// WriteError wraps a failure reported by the store while inserting.
type WriteError struct {
	Collection string
	ID         string
	Err        error
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s/%s: write failed: %v", e.Collection, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: write failed: %v", e.Collection, e.Err)
}

// QueryError wraps a rejected filter or a failure while reading results.
type QueryError struct {
	Collection string
	Filter     string
	Err        error
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func (e *QueryError) Error() string {
	if e.Filter != "" {
		return fmt.Sprintf("%s: query %s: %v", e.Collection, e.Filter, e.Err)
	}
	return fmt.Sprintf("%s: query: %v", e.Collection, e.Err)
}

// ConnectionError is reported when a session cannot be opened or closed, or
// when an operation runs on a session that is not open.
type ConnectionError struct {
	Database string
	Op       string
	Err      error
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Database, e.Op, e.Err)
}
