/*
Package docstore is the document-store driver used by edoc sessions.

A Driver hands out connections to named databases. A connection stores
schemaless documents in collections and answers Mongo-style filter
expressions:

	{"sku": "00e8da9b"}
	{"pricing.list": {"$gte": 1000}, "$or": [{"title": "A"}, {"title": "B"}]}

Two backends are provided: Bolt files (one file per database, see
NewBoltDriver) and a transient in-memory store intended for tests
(NewMemDriver).

# Storage layout

Each collection is a bucket. Keys are the raw bytes of the document's `_id`,
values are msgpack-encoded documents with sorted map keys. Documents without
an `_id` get a random UUID.

# Queries

Supported operators: $eq, $ne, $gt, $gte, $lt, $lte, $in, $and, $or. A plain
value is an implicit $eq. Dotted field names descend into sub-documents.
A top-level `_id` equality is answered by a point lookup; everything else is
a full collection scan in `_id` order.
*/
package docstore
