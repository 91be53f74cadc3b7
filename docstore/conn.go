package docstore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

type storeConn struct {
	database string
	st       storage
	logger   *slog.Logger
	release  func()
	closed   atomic.Bool
}

func newConn(database string, st storage, logger *slog.Logger, release func()) *storeConn {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeConn{
		database: database,
		st:       st,
		logger:   logger.With("database", database),
		release:  release,
	}
}

func (c *storeConn) check(ctx context.Context, collection string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if collection != "" {
		return validateName(ErrInvalidName, collection)
	}
	return nil
}

func (c *storeConn) InsertDocument(ctx context.Context, collection string, doc Document) (string, error) {
	if err := c.check(ctx, collection); err != nil {
		return "", err
	}
	if collection == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}

	id, doc, err := assignID(doc)
	if err != nil {
		return "", err
	}
	raw, err := encodeDocument(nil, doc)
	if err != nil {
		return "", err
	}

	tx, err := c.st.BeginTx(true)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	b, err := tx.CreateBucket(collection)
	if err != nil {
		return "", err
	}
	key := []byte(id)
	if b.Get(key) != nil {
		return "", fmt.Errorf("%w: %s/%s", ErrDuplicateKey, collection, id)
	}
	if err := b.Put(key, raw); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	c.logger.Debug("docstore: insert", "collection", collection, "id", id, "size", len(raw))
	return id, nil
}

// assignID returns a shallow copy of doc with a valid _id.
func assignID(doc Document) (string, Document, error) {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	switch v := out[IDField].(type) {
	case nil:
		id := uuid.NewString()
		out[IDField] = id
		return id, out, nil
	case string:
		if v == "" {
			return "", nil, fmt.Errorf("%w: empty string", ErrInvalidID)
		}
		return v, out, nil
	default:
		return "", nil, fmt.Errorf("%w: %T %v", ErrInvalidID, v, v)
	}
}

func (c *storeConn) Query(ctx context.Context, collection string, filter Document) (Iterator, error) {
	if err := c.check(ctx, collection); err != nil {
		return nil, err
	}
	m, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	it := &storeIterator{conn: c, ctx: ctx, collection: collection, matcher: m}
	if id, ok := pointID(m); ok {
		it.pointKey = []byte(id)
	}
	c.logger.Debug("docstore: query", "collection", collection, "point", it.pointKey != nil)
	return it, nil
}

func (c *storeConn) Count(ctx context.Context, collection string) (int, error) {
	if err := c.check(ctx, collection); err != nil {
		return 0, err
	}
	tx, err := c.st.BeginTx(false)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	b := tx.Bucket(collection)
	if b == nil {
		return 0, nil
	}
	return b.KeyCount(), nil
}

func (c *storeConn) Collections(ctx context.Context) ([]string, error) {
	if err := c.check(ctx, ""); err != nil {
		return nil, err
	}
	tx, err := c.st.BeginTx(false)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	var result []string
	for _, name := range tx.BucketNames() {
		if b := tx.Bucket(name); b != nil && b.KeyCount() > 0 {
			result = append(result, name)
		}
	}
	return result, nil
}

func (c *storeConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.release()
	return nil
}

// queryPageSize bounds how many matches one read transaction collects.
const queryPageSize = 64

// storeIterator reads matches a page at a time and holds no transaction
// between pages, so the caller may write while iterating. Documents inserted
// after the last visited key may show up in later pages.
type storeIterator struct {
	conn       *storeConn
	ctx        context.Context
	collection string
	matcher    Matcher
	pointKey   []byte

	page      []Document
	pos       int
	lastKey   []byte
	exhausted bool
	done      bool
	doc       Document
	err       error
}

func (it *storeIterator) Next() bool {
	for {
		if it.done {
			return false
		}
		if it.conn.closed.Load() {
			it.fail(ErrClosed)
			return false
		}
		if err := it.ctx.Err(); err != nil {
			it.fail(err)
			return false
		}
		if it.pos < len(it.page) {
			it.doc = it.page[it.pos]
			it.page[it.pos] = nil
			it.pos++
			return true
		}
		if it.exhausted {
			it.finish()
			return false
		}
		if err := it.fetch(); err != nil {
			it.fail(err)
			return false
		}
	}
}

// fetch loads the next page of matches in a short read transaction.
func (it *storeIterator) fetch() error {
	tx, err := it.conn.st.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	it.page, it.pos = it.page[:0], 0
	b := tx.Bucket(it.collection)
	if b == nil {
		it.exhausted = true
		return nil
	}

	if it.pointKey != nil {
		it.exhausted = true
		if v := b.Get(it.pointKey); v != nil {
			return it.consider(v)
		}
		return nil
	}

	c := b.Cursor()
	var k, v []byte
	if it.lastKey == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(it.lastKey)
		if k != nil && bytes.Equal(k, it.lastKey) {
			k, v = c.Next()
		}
	}
	for ; k != nil; k, v = c.Next() {
		if err := it.consider(v); err != nil {
			return err
		}
		if len(it.page) >= queryPageSize {
			// keys are only valid inside the transaction
			it.lastKey = append(it.lastKey[:0], k...)
			return nil
		}
	}
	it.exhausted = true
	return nil
}

func (it *storeIterator) consider(raw []byte) error {
	doc, err := decodeDocument(raw)
	if err != nil {
		return err
	}
	if it.matcher.Matches(doc) {
		it.page = append(it.page, doc)
	}
	return nil
}

func (it *storeIterator) Document() Document { return it.doc }

func (it *storeIterator) Err() error { return it.err }

func (it *storeIterator) fail(err error) {
	it.err = err
	it.finish()
}

func (it *storeIterator) finish() {
	it.done = true
	it.doc = nil
	it.page = nil
}

func (it *storeIterator) Close() error {
	it.finish()
	return nil
}

func validateName(sentinel error, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", sentinel)
	}
	if strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", sentinel, name)
	}
	return nil
}
