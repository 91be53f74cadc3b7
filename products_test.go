package edoc

import (
	"context"
	"reflect"
	"testing"

	"github.com/andreyvit/edoc/docstore"
)

type (
	Product struct {
		ID          string    `msgpack:"_id"`
		SKU         string    `msgpack:"sku"`
		Title       string    `msgpack:"title"`
		Description string    `msgpack:"description"`
		ASIN        string    `msgpack:"asin"`
		Shipping    *Shipping `msgpack:"shipping"`
		Pricing     *Pricing  `msgpack:"pricing"`
		Details     *Details  `msgpack:"details"`
	}

	Album Product

	Shipping struct {
		Weight     int         `msgpack:"weight"`
		Dimensions *Dimensions `msgpack:"dimensions"`
	}

	Dimensions struct {
		Width  int `msgpack:"width"`
		Height int `msgpack:"height"`
		Depth  int `msgpack:"depth"`
	}

	Pricing struct {
		List       int `msgpack:"list"`
		Retail     int `msgpack:"retail"`
		Savings    int `msgpack:"savings"`
		PCTSavings int `msgpack:"pct_savings"`
	}

	Details struct {
		Title      string `msgpack:"title"`
		Artist     string `msgpack:"artist"`
		Savings    int    `msgpack:"savings"`
		PCTSavings int    `msgpack:"pct_savings"`
	}

	productFields struct {
		SKU, Title, Description, ASIN *Field

		Shipping struct {
			G          *Group
			Weight     *Field
			Dimensions struct {
				G                    *Group
				Width, Height, Depth *Field
			}
		}
		Pricing struct {
			G                                 *Group
			List, Retail, Savings, PCTSavings *Field
		}
		Details struct {
			G                   *Group
			Title, Artist       *Field
			Savings, PCTSavings *Field
		}
	}
)

var (
	testCatalog = NewRegistry()

	Products = Define(testCatalog, "products", StringKey("_id"), declareProduct(&P))
	P        productFields

	Albums = Define(testCatalog, "products", StringKey("_id"), declareProduct(&A))
	A      productFields
)

func declareProduct(pf *productFields) func(b *Builder) {
	return func(b *Builder) {
		pf.SKU = b.String("sku")
		pf.Title = b.String("title")
		pf.Description = b.String("description")
		pf.ASIN = b.String("asin")

		pf.Shipping.G = b.Group("shipping", func(g *Builder) {
			pf.Shipping.Weight = g.Int("weight")
			pf.Shipping.Dimensions.G = g.Group("dimensions", func(g *Builder) {
				pf.Shipping.Dimensions.Width = g.Int("width")
				pf.Shipping.Dimensions.Height = g.Int("height")
				pf.Shipping.Dimensions.Depth = g.Int("depth")
			})
		})
		pf.Pricing.G = b.Group("pricing", func(g *Builder) {
			pf.Pricing.List = g.Int("list")
			pf.Pricing.Retail = g.Int("retail")
			pf.Pricing.Savings = g.Int("savings")
			pf.Pricing.PCTSavings = g.Int("pct_savings")
		})
		pf.Details.G = b.Group("details", func(g *Builder) {
			pf.Details.Title = g.String("title")
			pf.Details.Artist = g.String("artist")
			pf.Details.Savings = g.Int("savings")
			pf.Details.PCTSavings = g.Int("pct_savings")
		})
	}
}

func loveSupreme() *Album {
	return &Album{
		SKU:         "00e8da9b",
		Title:       "A Love Supreme",
		Description: "by John Coltrane",
		ASIN:        "B0000A118M",
		Shipping: &Shipping{
			Weight:     6,
			Dimensions: &Dimensions{Width: 10, Height: 10, Depth: 1},
		},
		Pricing: &Pricing{List: 1200, Retail: 1100, Savings: 100, PCTSavings: 8},
		Details: &Details{
			Title:  "A Love Supreme [Original Recording Reissued]",
			Artist: "John Coltrane",
		},
	}
}

func setup(t testing.TB) (*Session, *docstore.MemDriver) {
	t.Helper()
	driver := docstore.NewMemDriver()
	s := NewSession(driver, "test", Options{Logf: t.Logf, Verbose: testing.Verbose()})
	ensure(s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s, driver
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func mustPanic(t testing.TB, f func()) (reason any) {
	t.Helper()
	defer func() {
		reason = recover()
		if reason == nil {
			t.Errorf("** did not panic")
		}
	}()
	f()
	return nil
}
