package edoc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/andreyvit/edoc/docstore"
)

type State int

const (
	StateUnopened State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Options struct {
	Logf    func(format string, args ...any)
	Verbose bool
	Metrics *Metrics
}

// Session is a scoped handle to one database. A session is not safe for
// concurrent use; open one per goroutine.
type Session struct {
	driver   docstore.Driver
	database string
	conn     docstore.Conn
	state    State

	logf    func(format string, args ...any)
	verbose bool
	metrics *Metrics
}

// NewSession returns an unopened session.
func NewSession(driver docstore.Driver, database string, opt Options) *Session {
	logf := opt.Logf
	if logf == nil {
		logf = func(format string, args ...any) {}
	}
	return &Session{
		driver:   driver,
		database: database,
		logf:     logf,
		verbose:  opt.Verbose,
		metrics:  opt.Metrics,
	}
}

// WithSession opens a session, runs f and closes the session on every exit
// path. A panic in f is returned as an error.
func WithSession(ctx context.Context, driver docstore.Driver, database string, opt Options, f func(s *Session) error) (err error) {
	s := NewSession(driver, database, opt)
	if err := s.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return safelyCall(f, s)
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Session) error, s *Session) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(s)
}

func (s *Session) Database() string { return s.database }
func (s *Session) State() State     { return s.state }

// Conn exposes the driver connection of an open session, or nil.
func (s *Session) Conn() docstore.Conn { return s.conn }

func (s *Session) Open(ctx context.Context) error {
	switch s.state {
	case StateOpen:
		return nil
	case StateClosed:
		return &ConnectionError{Database: s.database, Op: "open", Err: ErrClosed}
	}
	conn, err := s.driver.Connect(ctx, s.database)
	if err != nil {
		return &ConnectionError{Database: s.database, Op: "open", Err: err}
	}
	s.conn = conn
	s.state = StateOpen
	if s.verbose {
		s.logf("edoc: OPEN %s", s.database)
	}
	return nil
}

// Close releases the connection. Closing an unopened or closed session only
// marks it closed.
func (s *Session) Close() error {
	if s.state != StateOpen {
		s.state = StateClosed
		return nil
	}
	conn := s.conn
	s.conn = nil
	s.state = StateClosed
	if err := conn.Close(); err != nil {
		return &ConnectionError{Database: s.database, Op: "close", Err: err}
	}
	if s.verbose {
		s.logf("edoc: CLOSE %s", s.database)
	}
	return nil
}

func (s *Session) checkOpen(op string) error {
	switch s.state {
	case StateOpen:
		return nil
	case StateClosed:
		return &ConnectionError{Database: s.database, Op: op, Err: ErrClosed}
	default:
		return &ConnectionError{Database: s.database, Op: op, Err: ErrNotOpen}
	}
}

// Insert stores entity in the schema's collection and returns its id. If the
// entity's key attribute is empty, the store generates an id and Insert
// writes it back into the entity.
func Insert[T any](ctx context.Context, s *Session, scm *Schema, entity *T) (string, error) {
	id, err := s.insert(ctx, scm, entity)
	if err != nil {
		return "", err
	}
	setEntityKey(scm, entity, id)
	return id, nil
}

// InsertDoc stores an untyped entity and returns its id. doc is not modified.
func (s *Session) InsertDoc(ctx context.Context, scm *Schema, doc Doc) (string, error) {
	return s.insert(ctx, scm, doc)
}

func (s *Session) insert(ctx context.Context, scm *Schema, entity any) (string, error) {
	if err := s.checkOpen("insert"); err != nil {
		return "", err
	}
	start := time.Now()
	doc, err := scm.Encode(entity)
	if err != nil {
		s.metrics.observe(scm.name, "insert", statusInvalid, start)
		return "", err
	}
	id, err := s.conn.InsertDocument(ctx, scm.name, doc)
	if err != nil {
		s.metrics.observe(scm.name, "insert", statusError, start)
		wantID, _ := doc[IDField].(string)
		return "", &WriteError{Collection: scm.name, ID: wantID, Err: err}
	}
	s.metrics.observe(scm.name, "insert", statusOK, start)
	if s.verbose {
		s.logf("edoc: INSERT %s/%s => %s", scm.name, id, loggableDoc(scm, doc))
	}
	return id, nil
}

// Find runs the filter against the schema's collection and returns a cursor
// decoding matching documents into T. The filter must be built from the
// schema's own fields.
func Find[T any](ctx context.Context, s *Session, scm *Schema, f *Filter) (*Cursor[T], error) {
	if err := s.checkOpen("find"); err != nil {
		return nil, err
	}
	if f == nil {
		f = All(scm)
	}
	if f.schema != scm {
		return nil, &QueryError{Collection: scm.name, Filter: f.String(), Err: ErrForeignField}
	}
	start := time.Now()
	native := f.Native()
	it, err := s.conn.Query(ctx, scm.name, native)
	if err != nil {
		s.metrics.observe(scm.name, "find", statusError, start)
		return nil, &QueryError{Collection: scm.name, Filter: f.String(), Err: err}
	}
	s.metrics.observe(scm.name, "find", statusOK, start)
	if s.verbose {
		s.logf("edoc: FIND %s %s", scm.name, f.String())
	}
	return &Cursor[T]{s: s, scm: scm, filter: f, it: it}, nil
}

// FindDocs is Find for untyped entities.
func (s *Session) FindDocs(ctx context.Context, scm *Schema, f *Filter) (*Cursor[Doc], error) {
	return Find[Doc](ctx, s, scm, f)
}

// Count returns the number of documents in the schema's collection.
func (s *Session) Count(ctx context.Context, scm *Schema) (int, error) {
	if err := s.checkOpen("count"); err != nil {
		return 0, err
	}
	n, err := s.conn.Count(ctx, scm.name)
	if err != nil {
		return 0, &QueryError{Collection: scm.name, Err: err}
	}
	return n, nil
}
