package edoc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const jsonSchemaDraft = "http://json-schema.org/draft-07/schema#"

func (scm *Schema) compileJSONSchema() error {
	doc := groupJSONSchema(scm.root)
	doc["$schema"] = jsonSchemaDraft
	doc["title"] = scm.name
	props := doc["properties"].(map[string]any)
	props[IDField] = map[string]any{
		"type":      scm.key.kind.jsonType(),
		"minLength": 1,
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: generating JSON schema: %w", scm.name, err)
	}
	scm.jsonSchema = string(raw)

	validator, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(scm.jsonSchema))
	if err != nil {
		return fmt.Errorf("%s: compiling JSON schema: %w", scm.name, err)
	}
	scm.validator = validator
	return nil
}

func groupJSONSchema(g *Group) map[string]any {
	props := make(map[string]any, len(g.members))
	for _, m := range g.members {
		if m.Group != nil {
			props[m.Group.name] = groupJSONSchema(m.Group)
		} else {
			props[m.Field.name] = map[string]any{"type": m.Field.kind.jsonType()}
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// validate checks a normalized document against the schema.
func (scm *Schema) validate(doc Doc) error {
	result, err := scm.validator.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return typeMismatchf(scm, "", KindGroup, nil, "cannot validate document: %v", err)
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	first := errs[0]
	path := first.Field()
	if path == "(root)" {
		path = ""
	}
	msgs := make([]string, 0, len(errs))
	msgs = append(msgs, first.Description())
	for _, e := range errs[1:] {
		msgs = append(msgs, e.String())
	}
	return &TypeMismatchError{
		Schema: scm.name,
		Path:   path,
		Want:   scm.kindAt(path),
		Value:  first.Value(),
		Msg:    strings.Join(msgs, "; "),
	}
}

func (scm *Schema) kindAt(path string) Kind {
	if fld := scm.fieldsByPath[path]; fld != nil {
		return fld.kind
	}
	if scm.GroupByPath(path) != nil {
		return KindGroup
	}
	return KindInvalid
}
