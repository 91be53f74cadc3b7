package main

import (
	"github.com/andreyvit/edoc"
)

type (
	Product struct {
		ID          string    `msgpack:"_id" json:"_id"`
		SKU         string    `msgpack:"sku" json:"sku"`
		Title       string    `msgpack:"title" json:"title"`
		Description string    `msgpack:"description,omitempty" json:"description,omitempty"`
		ASIN        string    `msgpack:"asin,omitempty" json:"asin,omitempty"`
		Shipping    *Shipping `msgpack:"shipping,omitempty" json:"shipping,omitempty"`
		Pricing     *Pricing  `msgpack:"pricing,omitempty" json:"pricing,omitempty"`
	}

	// Album is a product with music details; albums live in the products
	// collection.
	Album struct {
		ID          string    `msgpack:"_id" json:"_id"`
		SKU         string    `msgpack:"sku" json:"sku"`
		Title       string    `msgpack:"title" json:"title"`
		Description string    `msgpack:"description,omitempty" json:"description,omitempty"`
		ASIN        string    `msgpack:"asin,omitempty" json:"asin,omitempty"`
		Shipping    *Shipping `msgpack:"shipping,omitempty" json:"shipping,omitempty"`
		Pricing     *Pricing  `msgpack:"pricing,omitempty" json:"pricing,omitempty"`
		Details     *Details  `msgpack:"details,omitempty" json:"details,omitempty"`
	}

	Shipping struct {
		Weight     int         `msgpack:"weight" json:"weight"`
		Dimensions *Dimensions `msgpack:"dimensions,omitempty" json:"dimensions,omitempty"`
	}

	Dimensions struct {
		Width  int `msgpack:"width" json:"width"`
		Height int `msgpack:"height" json:"height"`
		Depth  int `msgpack:"depth" json:"depth"`
	}

	Pricing struct {
		List       int `msgpack:"list" json:"list"`
		Retail     int `msgpack:"retail" json:"retail"`
		Savings    int `msgpack:"savings" json:"savings"`
		PCTSavings int `msgpack:"pct_savings" json:"pct_savings"`
	}

	Details struct {
		Title      string `msgpack:"title" json:"title"`
		Artist     string `msgpack:"artist" json:"artist"`
		Savings    int    `msgpack:"savings,omitempty" json:"savings,omitempty"`
		PCTSavings int    `msgpack:"pct_savings,omitempty" json:"pct_savings,omitempty"`
	}
)

var catalog = edoc.NewRegistry()

var (
	productsF struct {
		SKU, Title, Description, ASIN *edoc.Field
		Weight                        *edoc.Field
		List, Retail                  *edoc.Field
	}
	Products = edoc.Define(catalog, "products", edoc.StringKey("_id"), func(b *edoc.Builder) {
		productsF.SKU = b.String("sku")
		productsF.Title = b.String("title")
		productsF.Description = b.String("description")
		productsF.ASIN = b.String("asin")
		b.Group("shipping", func(g *edoc.Builder) {
			productsF.Weight = g.Int("weight")
			declareDimensions(g)
		})
		b.Group("pricing", func(g *edoc.Builder) {
			productsF.List = g.Int("list")
			productsF.Retail = g.Int("retail")
			g.Int("savings")
			g.Int("pct_savings")
		})
		// products do not use details, but albums stored alongside them do
		b.Group("details", func(g *edoc.Builder) {
			g.String("title")
			g.String("artist")
			g.Int("savings")
			g.Int("pct_savings")
		})
	})
)

var (
	albumsF struct {
		SKU    *edoc.Field
		Artist *edoc.Field
	}
	Albums = edoc.Define(catalog, "products", edoc.StringKey("_id"), func(b *edoc.Builder) {
		albumsF.SKU = b.String("sku")
		b.String("title")
		b.String("description")
		b.String("asin")
		b.Group("shipping", func(g *edoc.Builder) {
			g.Int("weight")
			declareDimensions(g)
		})
		b.Group("pricing", func(g *edoc.Builder) {
			g.Int("list")
			g.Int("retail")
			g.Int("savings")
			g.Int("pct_savings")
		})
		b.Group("details", func(g *edoc.Builder) {
			g.String("title")
			albumsF.Artist = g.String("artist")
			g.Int("savings")
			g.Int("pct_savings")
		})
	})
)

func declareDimensions(b *edoc.Builder) {
	b.Group("dimensions", func(g *edoc.Builder) {
		g.Int("width")
		g.Int("height")
		g.Int("depth")
	})
}

func seedAlbums() []*Album {
	return []*Album{
		{
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
		},
		{
			SKU:         "0e0a8b6c",
			Title:       "Kind of Blue",
			Description: "by Miles Davis",
			ASIN:        "B000002ADT",
			Shipping: &Shipping{
				Weight:     5,
				Dimensions: &Dimensions{Width: 10, Height: 10, Depth: 1},
			},
			Pricing: &Pricing{List: 1400, Retail: 1000, Savings: 400, PCTSavings: 28},
			Details: &Details{
				Title:  "Kind of Blue [Legacy Edition]",
				Artist: "Miles Davis",
			},
		},
		{
			SKU:   "3c1f79d2",
			Title: "Mingus Ah Um",
			Shipping: &Shipping{
				Weight: 5,
			},
			Pricing: &Pricing{List: 900, Retail: 900},
			Details: &Details{
				Title:  "Mingus Ah Um",
				Artist: "Charles Mingus",
			},
		},
	}
}
