package edoc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/edoc/docstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSession_loveSupreme(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	album := loveSupreme()
	id := must(Insert(ctx, s, Albums, album))
	if id == "" {
		t.Fatalf("** Insert returned empty id")
	}
	deepEqual(t, album.ID, id)

	cur := must(Find[Product](ctx, s, Products, Must(Eq(P.SKU, "00e8da9b"))))
	found := must(cur.Collect())
	if len(found) != 1 {
		t.Fatalf("** found %d products, wanted 1", len(found))
	}
	p := found[0]
	deepEqual(t, p.ID, id)
	deepEqual(t, p.Title, "A Love Supreme")
	deepEqual(t, *p.Pricing, Pricing{List: 1200, Retail: 1100, Savings: 100, PCTSavings: 8})
	deepEqual(t, *p, Product(*album))
}

func TestSession_roundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	var inserted []*Product
	for i := range 20 {
		p := &Product{
			SKU:     fmt.Sprintf("sku-%02d", i),
			Title:   fmt.Sprintf("Product %d", i),
			Pricing: &Pricing{List: 100 * i, Retail: 90 * i},
		}
		if i%3 == 0 {
			p.ID = fmt.Sprintf("fixed-%d", i)
		}
		if i%2 == 0 {
			p.Shipping = &Shipping{Weight: i}
		}
		id := must(Insert(ctx, s, Products, p))
		deepEqual(t, p.ID, id)
		inserted = append(inserted, p)
	}

	for _, p := range inserted {
		found := must(must(Find[Product](ctx, s, Products, Must(Eq(Products.Key(), p.ID)))).Collect())
		if len(found) != 1 {
			t.Fatalf("** %s: found %d, wanted 1", p.ID, len(found))
		}
		deepEqual(t, *found[0], *p)
	}

	deepEqual(t, must(s.Count(ctx, Products)), 20)

	found := must(must(Find[Product](ctx, s, Products, Must(Gte(P.Pricing.List, 1500)))).Collect())
	deepEqual(t, len(found), 5)

	found = must(must(Find[Product](ctx, s, Products, Must(Or(
		Must(In(P.SKU, "sku-01", "sku-02")),
		Must(Eq(P.Shipping.Weight, 18)),
	)))).Collect())
	var skus []string
	for _, p := range found {
		skus = append(skus, p.SKU)
	}
	if len(skus) != 3 {
		t.Errorf("** Or matched %v, wanted sku-01, sku-02, sku-18", skus)
	}
}

func TestSession_emptyCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	cur := must(Find[Product](ctx, s, Products, nil))
	n := 0
	for _, err := range cur.All() {
		ensure(err)
		n++
	}
	deepEqual(t, n, 0)
	deepEqual(t, must(s.Count(ctx, Products)), 0)
}

func TestSession_untyped(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	input := Doc{"sku": "u1", "pricing": Doc{"list": 7}}
	id := must(s.InsertDoc(ctx, Products, input))
	if _, ok := input["_id"]; ok {
		t.Errorf("** InsertDoc modified its input: %v", input)
	}

	found := must(must(s.FindDocs(ctx, Products, Must(Eq(P.Pricing.List, 7)))).Collect())
	if len(found) != 1 {
		t.Fatalf("** found %v", found)
	}
	deepEqual(t, *found[0], Doc{"_id": id, "sku": "u1", "pricing": map[string]any{"list": int64(7)}})
}

func TestSession_typeMismatchIsNotStored(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	_, err := s.InsertDoc(ctx, Products, Doc{"sku": "bad", "pricing": Doc{"list": "cheap"}})
	var e *TypeMismatchError
	if !errors.As(err, &e) {
		t.Fatalf("** err = %v, wanted *TypeMismatchError", err)
	}
	deepEqual(t, must(s.Count(ctx, Products)), 0)
}

func TestSession_duplicateKey(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	must(Insert(ctx, s, Products, &Product{ID: "dup", SKU: "one"}))
	_, err := Insert(ctx, s, Products, &Product{ID: "dup", SKU: "two"})
	var e *WriteError
	if !errors.As(err, &e) || !errors.Is(err, docstore.ErrDuplicateKey) {
		t.Fatalf("** err = %v, wanted WriteError wrapping ErrDuplicateKey", err)
	}
	deepEqual(t, e.Collection, "products")
	deepEqual(t, e.ID, "dup")

	found := must(must(Find[Product](ctx, s, Products, Must(Eq(Products.Key(), "dup")))).Collect())
	deepEqual(t, found[0].SKU, "one")
}

func TestSession_foreignFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)

	_, err := Find[Product](ctx, s, Products, Must(Eq(A.SKU, "x")))
	var e *QueryError
	if !errors.As(err, &e) || !errors.Is(err, ErrForeignField) {
		t.Fatalf("** err = %v, wanted QueryError wrapping ErrForeignField", err)
	}
}

func TestSession_stateMachine(t *testing.T) {
	ctx := context.Background()
	s := NewSession(docstore.NewMemDriver(), "test", Options{})
	deepEqual(t, s.State(), StateUnopened)

	var e *ConnectionError
	_, err := Insert(ctx, s, Products, &Product{SKU: "x"})
	if !errors.As(err, &e) || !errors.Is(err, ErrNotOpen) {
		t.Fatalf("** Insert on unopened session: err = %v", err)
	}
	if _, err := Find[Product](ctx, s, Products, nil); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("** Find on unopened session: err = %v", err)
	}

	ensure(s.Open(ctx))
	ensure(s.Open(ctx))
	deepEqual(t, s.State(), StateOpen)
	if s.Conn() == nil {
		t.Fatalf("** open session has no connection")
	}

	ensure(s.Close())
	ensure(s.Close())
	deepEqual(t, s.State(), StateClosed)

	_, err = Insert(ctx, s, Products, &Product{SKU: "x"})
	if !errors.As(err, &e) || !errors.Is(err, ErrClosed) {
		t.Fatalf("** Insert on closed session: err = %v", err)
	}
	if _, err := s.Count(ctx, Products); !errors.Is(err, ErrClosed) {
		t.Fatalf("** Count on closed session: err = %v", err)
	}
	if err := s.Open(ctx); !errors.As(err, &e) || !errors.Is(err, ErrClosed) {
		t.Fatalf("** reopening closed session: err = %v", err)
	}
}

func TestSession_closeUnopened(t *testing.T) {
	s := NewSession(docstore.NewMemDriver(), "test", Options{})
	ensure(s.Close())
	deepEqual(t, s.State(), StateClosed)
}

type failingDriver struct {
	err error
}

func (d failingDriver) Connect(ctx context.Context, database string) (docstore.Conn, error) {
	return nil, d.err
}

func TestSession_openFailure(t *testing.T) {
	cause := errors.New("server unreachable")
	s := NewSession(failingDriver{cause}, "test", Options{})
	err := s.Open(context.Background())
	var e *ConnectionError
	if !errors.As(err, &e) || !errors.Is(err, cause) {
		t.Fatalf("** err = %v, wanted ConnectionError wrapping the cause", err)
	}
	deepEqual(t, e.Database, "test")
	deepEqual(t, e.Op, "open")
	deepEqual(t, s.State(), StateUnopened)

	called := false
	err = WithSession(context.Background(), failingDriver{cause}, "test", Options{}, func(s *Session) error {
		called = true
		return nil
	})
	if !errors.Is(err, cause) || called {
		t.Fatalf("** WithSession err = %v, called = %v", err, called)
	}
}

func TestSession_invalidDatabase(t *testing.T) {
	s := NewSession(docstore.NewMemDriver(), "a/b", Options{})
	err := s.Open(context.Background())
	if !errors.Is(err, docstore.ErrInvalidDatabase) {
		t.Fatalf("** err = %v, wanted ErrInvalidDatabase", err)
	}
}

type trackingDriver struct {
	docstore.Driver
	closes int
}

func (d *trackingDriver) Connect(ctx context.Context, database string) (docstore.Conn, error) {
	conn, err := d.Driver.Connect(ctx, database)
	if err != nil {
		return nil, err
	}
	return &trackingConn{Conn: conn, d: d}, nil
}

type trackingConn struct {
	docstore.Conn
	d *trackingDriver
}

func (c *trackingConn) Close() error {
	c.d.closes++
	return c.Conn.Close()
}

func TestWithSession_closes(t *testing.T) {
	ctx := context.Background()
	driver := &trackingDriver{Driver: docstore.NewMemDriver()}

	var saved *Session
	ensure(WithSession(ctx, driver, "test", Options{}, func(s *Session) error {
		saved = s
		_, err := Insert(ctx, s, Products, &Product{SKU: "kept"})
		return err
	}))
	deepEqual(t, driver.closes, 1)
	deepEqual(t, saved.State(), StateClosed)

	boom := errors.New("boom")
	err := WithSession(ctx, driver, "test", Options{}, func(s *Session) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("** err = %v, wanted boom", err)
	}
	deepEqual(t, driver.closes, 2)

	err = WithSession(ctx, driver, "test", Options{}, func(s *Session) error {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "panic: kaboom") {
		t.Errorf("** err = %v, wanted panic error", err)
	}
	deepEqual(t, driver.closes, 3)

	ensure(WithSession(ctx, driver, "test", Options{}, func(s *Session) error {
		deepEqual(t, must(s.Count(ctx, Products)), 1)
		return nil
	}))
}

func TestCursor_singleUse(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	must(Insert(ctx, s, Products, &Product{ID: "a"}))
	must(Insert(ctx, s, Products, &Product{ID: "b"}))

	cur := must(Find[Product](ctx, s, Products, nil))
	var ids []string
	for p, err := range cur.All() {
		ensure(err)
		ids = append(ids, p.ID)
	}
	deepEqual(t, ids, []string{"a", "b"})

	for _, err := range cur.All() {
		if !errors.Is(err, ErrConsumed) {
			t.Errorf("** second pass err = %v, wanted ErrConsumed", err)
		}
	}
	if cur.Next() {
		t.Errorf("** Next succeeded on a drained cursor")
	}

	cur = must(Find[Product](ctx, s, Products, nil))
	if !cur.Next() {
		t.Fatalf("** Next failed: %v", cur.Err())
	}
	deepEqual(t, cur.Entity().ID, "a")
	_, err := cur.Collect()
	if !errors.Is(err, ErrConsumed) {
		t.Errorf("** Collect after Next err = %v, wanted ErrConsumed", err)
	}
	ensure(cur.Close())
}

func TestCursor_earlyBreak(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	for _, id := range []string{"a", "b", "c"} {
		must(Insert(ctx, s, Products, &Product{ID: id}))
	}
	cur := must(Find[Product](ctx, s, Products, nil))
	for p, err := range cur.All() {
		ensure(err)
		deepEqual(t, p.ID, "a")
		break
	}
	if cur.Next() {
		t.Errorf("** cursor still open after early break")
	}
}

func TestCursor_sessionClosed(t *testing.T) {
	ctx := context.Background()
	s, _ := setup(t)
	must(Insert(ctx, s, Products, &Product{ID: "a"}))

	cur := must(Find[Product](ctx, s, Products, nil))
	ensure(s.Close())
	if cur.Next() {
		t.Fatalf("** Next succeeded after the session was closed")
	}
	var e *ConnectionError
	if !errors.As(cur.Err(), &e) || !errors.Is(cur.Err(), ErrClosed) {
		t.Errorf("** Err = %v, wanted ConnectionError wrapping ErrClosed", cur.Err())
	}
}

func TestSession_bolt(t *testing.T) {
	ctx := context.Background()
	driver := docstore.NewBoltDriver(t.TempDir(), docstore.BoltOptions{IsTesting: true})

	var id string
	ensure(WithSession(ctx, driver, "catalog", Options{Logf: t.Logf}, func(s *Session) (err error) {
		id, err = Insert(ctx, s, Albums, loveSupreme())
		return err
	}))

	ensure(WithSession(ctx, driver, "catalog", Options{Logf: t.Logf}, func(s *Session) error {
		found, err := must(Find[Product](ctx, s, Products, Must(Eq(P.SKU, "00e8da9b")))).Collect()
		if err != nil {
			return err
		}
		if len(found) != 1 {
			t.Fatalf("** found %d products after reopening, wanted 1", len(found))
		}
		deepEqual(t, found[0].ID, id)
		deepEqual(t, found[0].Pricing.List, 1200)
		deepEqual(t, found[0].Shipping.Dimensions.Depth, 1)
		return nil
	}))
}

func TestSession_metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)
	s := NewSession(docstore.NewMemDriver(), "test", Options{Metrics: m})
	ensure(s.Open(ctx))
	defer s.Close()

	must(Insert(ctx, s, Products, &Product{ID: "a"}))
	must(Insert(ctx, s, Products, &Product{ID: "b"}))
	Insert(ctx, s, Products, &Product{ID: "a"})
	s.InsertDoc(ctx, Products, Doc{"bogus": 1})
	must(must(Find[Product](ctx, s, Products, nil)).Collect())

	deepEqual(t, testutil.ToFloat64(m.Operations.WithLabelValues("products", "insert", "ok")), 2.0)
	deepEqual(t, testutil.ToFloat64(m.Operations.WithLabelValues("products", "insert", "error")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.Operations.WithLabelValues("products", "insert", "invalid")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.Operations.WithLabelValues("products", "find", "ok")), 1.0)
	deepEqual(t, testutil.ToFloat64(m.Documents.WithLabelValues("products")), 2.0)
	deepEqual(t, testutil.CollectAndCount(m.Duration), 2)
}

func TestSession_verboseLogging(t *testing.T) {
	ctx := context.Background()
	var lines []string
	logf := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	secrets := Define(NewRegistry(), "secrets", StringKey("name"), func(b *Builder) {
		b.String("value")
		b.SuppressContentWhenLogging()
	})

	ensure(WithSession(ctx, docstore.NewMemDriver(), "test", Options{Logf: logf, Verbose: true}, func(s *Session) error {
		must(s.InsertDoc(ctx, Products, Doc{"_id": "p1", "sku": "x"}))
		must(s.InsertDoc(ctx, secrets, Doc{"name": "s1", "value": "hunter2"}))
		must(must(s.FindDocs(ctx, Products, Must(Eq(P.SKU, "x")))).Collect())
		return nil
	}))

	deepEqual(t, lines, []string{
		"edoc: OPEN test",
		`edoc: INSERT products/p1 => {"_id":"p1","sku":"x"}`,
		"edoc: INSERT secrets/s1 => <suppressed>",
		`edoc: FIND products {"sku":{"$eq":"x"}}`,
		"edoc: CLOSE test",
	})
}

func TestSession_boltInsertDuringFind(t *testing.T) {
	ctx := context.Background()
	driver := docstore.NewBoltDriver(t.TempDir(), docstore.BoltOptions{IsTesting: true, MmapSize: 32 * 1024})
	s := NewSession(driver, "catalog", Options{Logf: t.Logf})
	ensure(s.Open(ctx))
	defer s.Close()

	for range 3 {
		must(Insert(ctx, s, Albums, loveSupreme()))
	}

	result := make(chan error, 1)
	go func() {
		cur, err := Find[Album](ctx, s, Albums, nil)
		if err != nil {
			result <- err
			return
		}
		first := true
		for _, err := range cur.All() {
			if err != nil {
				result <- err
				return
			}
			if !first {
				continue
			}
			first = false
			for range 200 {
				a := loveSupreme()
				a.Description = strings.Repeat("liner notes ", 350)
				if _, err := Insert(ctx, s, Albums, a); err != nil {
					result <- err
					return
				}
			}
		}
		result <- nil
	}()

	select {
	case err := <-result:
		ensure(err)
	case <-time.After(10 * time.Second):
		t.Fatalf("** insert during an open Find never returned")
	}
	deepEqual(t, must(s.Count(ctx, Albums)), 203)
}
