package edoc

// Field describes one named scalar attribute declared by a Builder. Fields
// are immutable and keep a back-reference to the group that declared them.
type Field struct {
	name  string
	path  string
	kind  Kind
	owner *Group
	isKey bool
}

func (f *Field) Name() string { return f.name }

// Path is the dotted document path, e.g. "pricing.list". The key field's path
// is always "_id".
func (f *Field) Path() string { return f.path }

func (f *Field) Kind() Kind      { return f.kind }
func (f *Field) Owner() *Group   { return f.owner }
func (f *Field) Schema() *Schema { return f.owner.schema }
func (f *Field) IsKey() bool     { return f.isKey }

func (f *Field) String() string {
	return f.owner.schema.name + "." + f.path
}

// Member is one entry of a Group: exactly one of Field and Group is set.
type Member struct {
	Field *Field
	Group *Group
}

func (m Member) Name() string {
	if m.Group != nil {
		return m.Group.name
	}
	return m.Field.name
}

func (m Member) Kind() Kind {
	if m.Group != nil {
		return KindGroup
	}
	return m.Field.kind
}

// Group is a named sub-document. Every schema has an unnamed root group.
type Group struct {
	name    string
	path    string
	parent  *Group
	schema  *Schema
	members []Member
	byName  map[string]Member
}

func newGroup(scm *Schema, parent *Group, name string) *Group {
	g := &Group{
		name:   name,
		parent: parent,
		schema: scm,
		byName: make(map[string]Member),
	}
	if parent != nil {
		g.path = joinPath(parent.path, name)
	}
	return g
}

func (g *Group) Name() string    { return g.name }
func (g *Group) Path() string    { return g.path }
func (g *Group) Parent() *Group  { return g.parent }
func (g *Group) Schema() *Schema { return g.schema }
func (g *Group) IsRoot() bool    { return g.parent == nil }

// Members returns the declared members in declaration order.
func (g *Group) Members() []Member {
	return append([]Member(nil), g.members...)
}

// Field returns the directly declared field with the given name, or nil.
func (g *Group) Field(name string) *Field {
	return g.byName[name].Field
}

// Group returns the directly declared sub-group with the given name, or nil.
func (g *Group) Group(name string) *Group {
	return g.byName[name].Group
}

func (g *Group) String() string {
	if g.path == "" {
		return g.schema.name
	}
	return g.schema.name + "." + g.path
}

func (g *Group) add(m Member) {
	g.members = append(g.members, m)
	g.byName[m.Name()] = m
}

// walk visits leaf fields depth-first in declaration order.
func (g *Group) walk(f func(fld *Field)) {
	for _, m := range g.members {
		if m.Group != nil {
			m.Group.walk(f)
		} else {
			f(m.Field)
		}
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
