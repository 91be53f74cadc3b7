/*
Package edoc declares typed schemas for document collections and runs
inserts and filters against a document store through a session.

A schema is declared once, at package initialization:

	var (
		Products = edoc.Define(catalog, "products", edoc.StringKey("_id"), func(b *edoc.Builder) {
			ProductSKU = b.String("sku")
			b.Group("pricing", func(g *edoc.Builder) {
				PricingList = g.Int("list")
			})
		})
		ProductSKU  *edoc.Field
		PricingList *edoc.Field
	)

Fields are leaves of a tree rooted in the schema; groups are sub-documents.
A field's path is its dotted location in the stored document (pricing.list),
and filters refer to fields, never to raw paths:

	err := edoc.WithSession(ctx, driver, "test", edoc.Options{}, func(s *edoc.Session) error {
		_, err := edoc.Insert(ctx, s, Products, &Product{SKU: "00e8da9b"})
		if err != nil {
			return err
		}
		c, err := edoc.Find[Product](ctx, s, Products, edoc.Must(edoc.Eq(ProductSKU, "00e8da9b")))
		if err != nil {
			return err
		}
		for p, err := range c.All() {
			...
		}
		return nil
	})

# Entities

Entities are Go structs whose msgpack field names match the declared names,
with nested structs for groups, or untyped Docs. The key attribute is stored
as _id; when it is empty the store generates a UUID and Insert writes it back.
Documents are checked against a JSON Schema generated from the declaration,
so undeclared fields and values of the wrong kind fail with
*TypeMismatchError before anything is written.

# Errors

Declaration problems (*DuplicateFieldError, invalid names) make Define panic;
TryDefine returns them. Filters check value kinds when they are built
(*TypeMismatchError). Store failures surface as *WriteError and *QueryError,
session state and connection problems as *ConnectionError. Nothing is
retried.
*/
package edoc
