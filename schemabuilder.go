package edoc

import (
	"fmt"
)

// Builder declares the members of a schema or of a group.
type Builder struct {
	scm *Schema
	grp *Group
	err *error
}

// Define declares a schema and adds it to reg (Default if nil). It panics if
// the declaration is invalid; use it for package-level schema variables.
func Define(reg *Registry, collection string, key KeyDef, f func(b *Builder)) *Schema {
	scm, err := TryDefine(reg, collection, key, f)
	if err != nil {
		panic(fmt.Errorf("Define(%s): %w", collection, err))
	}
	return scm
}

// TryDefine is like Define, but returns declaration errors such as
// *DuplicateFieldError.
func TryDefine(reg *Registry, collection string, key KeyDef, f func(b *Builder)) (*Schema, error) {
	if reg == nil {
		reg = Default
	}
	if collection == "" {
		return nil, fmt.Errorf("empty collection name")
	}
	scm := &Schema{
		name:         collection,
		fieldsByPath: make(map[string]*Field),
	}
	scm.root = newGroup(scm, nil, "")

	var err error
	b := &Builder{scm: scm, grp: scm.root, err: &err}
	b.declareKey(key)
	if f != nil && err == nil {
		f(b)
	}
	scm.sealed = true
	if err != nil {
		return nil, err
	}

	scm.root.walk(func(fld *Field) {
		scm.fields = append(scm.fields, fld)
		scm.fieldsByPath[fld.path] = fld
	})
	scm.fieldsByPath[IDField] = scm.key

	if err := scm.compileJSONSchema(); err != nil {
		return nil, err
	}
	reg.add(scm)
	return scm, nil
}

func (b *Builder) declareKey(key KeyDef) {
	if key.kind != KindString {
		b.fail(fmt.Errorf("%s: key must be declared with StringKey", b.scm.name))
		return
	}
	if err := checkName(b.scm.name, key.name); err != nil {
		b.fail(err)
		return
	}
	fld := &Field{
		name:  key.name,
		path:  IDField,
		kind:  key.kind,
		owner: b.grp,
		isKey: true,
	}
	b.scm.key = fld
	// The key is reserved under both names, but is not a regular member.
	b.grp.byName[key.name] = Member{Field: fld}
	b.grp.byName[IDField] = Member{Field: fld}
}

// String declares a string field.
func (b *Builder) String(name string) *Field {
	return b.field(name, KindString)
}

// Int declares an integer field.
func (b *Builder) Int(name string) *Field {
	return b.field(name, KindInt)
}

// Group declares a sub-document; f declares its members.
func (b *Builder) Group(name string, f func(g *Builder)) *Group {
	b.checkSealed()
	g := newGroup(b.scm, b.grp, name)
	if b.claim(name) {
		b.grp.add(Member{Group: g})
	}
	if f != nil {
		f(&Builder{scm: b.scm, grp: g, err: b.err})
	}
	return g
}

// SuppressContentWhenLogging hides document contents in verbose logs.
func (b *Builder) SuppressContentWhenLogging() {
	b.checkSealed()
	b.scm.suppressContent = true
}

func (b *Builder) field(name string, kind Kind) *Field {
	b.checkSealed()
	fld := &Field{
		name:  name,
		path:  joinPath(b.grp.path, name),
		kind:  kind,
		owner: b.grp,
	}
	if b.claim(name) {
		b.grp.add(Member{Field: fld})
	}
	return fld
}

// claim reserves name in the current group, recording the first failure.
func (b *Builder) claim(name string) bool {
	if err := checkName(b.grp.String(), name); err != nil {
		b.fail(err)
		return false
	}
	if _, dup := b.grp.byName[name]; dup {
		b.fail(&DuplicateFieldError{Schema: b.scm.name, Scope: b.grp.path, Name: name})
		return false
	}
	return true
}

func (b *Builder) fail(err error) {
	if *b.err == nil {
		*b.err = err
	}
}

func (b *Builder) checkSealed() {
	if b.scm.sealed {
		panic(fmt.Errorf("%s: schema is already defined and cannot be changed", b.scm.name))
	}
}
