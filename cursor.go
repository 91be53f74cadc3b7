package edoc

import (
	"iter"

	"github.com/andreyvit/edoc/docstore"
)

// Cursor lazily decodes query results. It is finite, single-use and must be
// closed unless it was drained; ranging over All closes it automatically.
type Cursor[T any] struct {
	s       *Session
	scm     *Schema
	filter  *Filter
	it      docstore.Iterator
	cur     *T
	err     error
	started bool
	done    bool
}

func (c *Cursor[T]) Next() bool {
	c.started = true
	if c.done {
		return false
	}
	if c.s.state != StateOpen {
		c.fail(c.s.checkOpen("next"))
		return false
	}
	if !c.it.Next() {
		if err := c.it.Err(); err != nil {
			c.fail(&QueryError{Collection: c.scm.name, Filter: c.filter.String(), Err: err})
		} else {
			c.Close()
		}
		return false
	}
	entity := new(T)
	if err := c.scm.Decode(c.it.Document(), entity); err != nil {
		c.fail(&QueryError{Collection: c.scm.name, Filter: c.filter.String(), Err: err})
		return false
	}
	c.s.metrics.documentRead(c.scm.name)
	c.cur = entity
	return true
}

// Entity returns the entity decoded by the last successful Next.
func (c *Cursor[T]) Entity() *T { return c.cur }

func (c *Cursor[T]) Err() error { return c.err }

func (c *Cursor[T]) fail(err error) {
	c.err = err
	c.Close()
}

func (c *Cursor[T]) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	c.cur = nil
	return c.it.Close()
}

// All returns a single-use sequence of the remaining entities. A failure is
// yielded as the last pair. Ranging over it again, or after Next was called,
// yields ErrConsumed.
func (c *Cursor[T]) All() iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		if c.started {
			yield(nil, ErrConsumed)
			return
		}
		defer c.Close()
		for c.Next() {
			if !yield(c.cur, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

// Collect drains the cursor.
func (c *Cursor[T]) Collect() ([]*T, error) {
	var result []*T
	for e, err := range c.All() {
		if err != nil {
			return result, err
		}
		result = append(result, e)
	}
	return result, nil
}
