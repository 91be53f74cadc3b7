package docstore

import (
	"context"
	"errors"
)

// Document is a schemaless document. Sub-documents are map[string]any too.
type Document = map[string]any

// IDField is the reserved identifier field of every document.
const IDField = "_id"

var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrInvalidID       = errors.New("invalid document id")
	ErrMalformedQuery  = errors.New("malformed query")
	ErrInvalidDatabase = errors.New("invalid database name")
	ErrInvalidName     = errors.New("invalid collection name")
	ErrClosed          = errors.New("connection closed")
)

// Driver opens connections to named databases.
type Driver interface {
	Connect(ctx context.Context, database string) (Conn, error)
}

// Conn is a connection to a single database. A Conn is safe for concurrent
// use, but iterators it returns are not.
type Conn interface {
	// InsertDocument stores doc in the collection and returns its id,
	// generating one if doc has no _id.
	InsertDocument(ctx context.Context, collection string, doc Document) (string, error)

	// Query returns the documents of the collection matching filter. An empty
	// or nil filter matches everything. The iterator must be closed.
	Query(ctx context.Context, collection string, filter Document) (Iterator, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Collections lists the collections that hold at least one document.
	Collections(ctx context.Context) ([]string, error)

	Close() error
}

// Iterator walks query results. It is finite and cannot be restarted.
type Iterator interface {
	Next() bool
	Document() Document
	Err() error
	Close() error
}
