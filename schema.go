package edoc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andreyvit/edoc/docstore"
	"github.com/xeipuuv/gojsonschema"
)

// IDField is the document field that stores every schema's key.
const IDField = docstore.IDField

// Schema describes the documents of one collection: a key and a tree of
// fields and groups. Schemas are built once by Define and never change
// afterwards, so they can be shared by any number of sessions.
type Schema struct {
	name            string
	key             *Field
	root            *Group
	fields          []*Field
	fieldsByPath    map[string]*Field
	suppressContent bool
	sealed          bool

	jsonSchema string
	validator  *gojsonschema.Schema
}

// KeyDef describes the primary key of a schema.
type KeyDef struct {
	name string
	kind Kind
}

// StringKey declares a string primary key. The entity attribute is called
// name; in stored documents it always lives in _id.
func StringKey(name string) KeyDef {
	return KeyDef{name: name, kind: KindString}
}

// Name returns the collection name.
func (scm *Schema) Name() string   { return scm.name }
func (scm *Schema) Key() *Field    { return scm.key }
func (scm *Schema) Root() *Group   { return scm.root }
func (scm *Schema) String() string { return scm.name }

// Fields returns all non-key leaf fields depth-first in declaration order.
func (scm *Schema) Fields() []*Field {
	return append([]*Field(nil), scm.fields...)
}

// FieldByPath finds a leaf field by its dotted document path. The key is
// found under "_id".
func (scm *Schema) FieldByPath(path string) *Field {
	return scm.fieldsByPath[path]
}

// GroupByPath finds a group by its dotted path; "" is the root.
func (scm *Schema) GroupByPath(path string) *Group {
	g := scm.root
	if path == "" {
		return g
	}
	for _, comp := range strings.Split(path, ".") {
		g = g.Group(comp)
		if g == nil {
			return nil
		}
	}
	return g
}

// JSONSchema returns the JSON Schema that stored documents must satisfy.
func (scm *Schema) JSONSchema() string {
	return scm.jsonSchema
}

// Registry holds the schemas a program declares at init time. Several
// schemas may describe the same collection.
type Registry struct {
	mu      sync.RWMutex
	schemas []*Schema
}

// Default is used by Define when no registry is given.
var Default = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{}
}

func (reg *Registry) add(scm *Schema) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.schemas = append(reg.schemas, scm)
}

func (reg *Registry) Schemas() []*Schema {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return append([]*Schema(nil), reg.schemas...)
}

// Lookup returns the first schema defined for the collection, or nil.
func (reg *Registry) Lookup(collection string) *Schema {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, scm := range reg.schemas {
		if scm.name == collection {
			return scm
		}
	}
	return nil
}

// Collections lists distinct collection names in definition order.
func (reg *Registry) Collections() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var result []string
	seen := make(map[string]bool)
	for _, scm := range reg.schemas {
		if !seen[scm.name] {
			seen[scm.name] = true
			result = append(result, scm.name)
		}
	}
	return result
}

func checkName(scope, name string) error {
	if name == "" || strings.Contains(name, ".") || strings.HasPrefix(name, "$") {
		return fmt.Errorf("%s: %w %q", scope, ErrInvalidName, name)
	}
	return nil
}
