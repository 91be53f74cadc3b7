package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/andreyvit/edoc"
	"github.com/andreyvit/edoc/docstore"
	"github.com/spf13/cobra"
)

type app struct {
	cfg *Config
	log *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "edoc",
		Short:         "Typed access to a Bolt-backed product catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
			return nil
		},
	}
	addConfigFlags(root)
	root.AddCommand(
		newSeedCmd(a),
		newInsertCmd(a),
		newFindCmd(a),
		newDumpCmd(a),
		newCollectionsCmd(a),
		newSchemaCmd(),
	)
	return root
}

func (a *app) withSession(cmd *cobra.Command, f func(ctx context.Context, s *edoc.Session) error) error {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return err
	}
	driver := docstore.NewBoltDriver(a.cfg.DataDir, docstore.BoltOptions{
		Timeout: a.cfg.Timeout,
	})
	opt := edoc.Options{
		Logf:    a.log.Printf,
		Verbose: a.cfg.Verbose,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return edoc.WithSession(ctx, driver, a.cfg.Database, opt, func(s *edoc.Session) error {
		return f(ctx, s)
	})
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample albums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
				for _, album := range seedAlbums() {
					if _, err := edoc.Insert(ctx, s, Albums, album); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", album.ID, album.Title)
				}
				return nil
			})
		},
	}
}

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert FILE",
		Short: "Insert products from a JSON file (an object or an array; - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			docs, err := readDocs(r)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
				for _, doc := range docs {
					id, err := s.InsertDoc(ctx, Products, doc)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func readDocs(r io.Reader) ([]edoc.Doc, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case map[string]any:
		return []edoc.Doc{v}, nil
	case []any:
		docs := make([]edoc.Doc, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, expected an object", i, item)
			}
			docs = append(docs, m)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("expected an object or an array, got %T", v)
	}
}

func newFindCmd(a *app) *cobra.Command {
	var (
		sku, title, artist string
		minPrice, maxPrice int
	)
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List products matching all given conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if artist != "" {
				f := edoc.Must(edoc.Eq(albumsF.Artist, artist))
				if sku != "" {
					f = edoc.Must(edoc.And(f, edoc.Must(edoc.Eq(albumsF.SKU, sku))))
				}
				return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
					cur, err := edoc.Find[Album](ctx, s, Albums, f)
					if err != nil {
						return err
					}
					return printAll(cmd.OutOrStdout(), cur)
				})
			}

			var filters []*edoc.Filter
			if sku != "" {
				filters = append(filters, edoc.Must(edoc.Eq(productsF.SKU, sku)))
			}
			if title != "" {
				filters = append(filters, edoc.Must(edoc.Eq(productsF.Title, title)))
			}
			if cmd.Flags().Changed("min-price") {
				filters = append(filters, edoc.Must(edoc.Gte(productsF.List, minPrice)))
			}
			if cmd.Flags().Changed("max-price") {
				filters = append(filters, edoc.Must(edoc.Lte(productsF.List, maxPrice)))
			}
			f := edoc.All(Products)
			if len(filters) > 0 {
				f = edoc.Must(edoc.And(filters...))
			}
			return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
				cur, err := edoc.Find[Product](ctx, s, Products, f)
				if err != nil {
					return err
				}
				return printAll(cmd.OutOrStdout(), cur)
			})
		},
	}
	cmd.Flags().StringVar(&sku, "sku", "", "exact SKU")
	cmd.Flags().StringVar(&title, "title", "", "exact title")
	cmd.Flags().StringVar(&artist, "artist", "", "album artist (searches albums)")
	cmd.Flags().IntVar(&minPrice, "min-price", 0, "minimum list price")
	cmd.Flags().IntVar(&maxPrice, "max-price", 0, "maximum list price")
	return cmd
}

func printAll[T any](w io.Writer, cur *edoc.Cursor[T]) error {
	enc := json.NewEncoder(w)
	for e, err := range cur.All() {
		if err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func newDumpCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "dump COLLECTION",
		Short: "Print raw stored documents, optionally matching a native filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var native docstore.Document
			if filter != "" {
				if err := json.Unmarshal([]byte(filter), &native); err != nil {
					return fmt.Errorf("invalid --filter: %w", err)
				}
			}
			return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
				it, err := s.Conn().Query(ctx, args[0], native)
				if err != nil {
					return err
				}
				defer it.Close()
				enc := json.NewEncoder(cmd.OutOrStdout())
				for it.Next() {
					if err := enc.Encode(it.Document()); err != nil {
						return err
					}
				}
				return it.Err()
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", `native filter, e.g. {"pricing.list": {"$gt": 1000}}`)
	return cmd
}

func newCollectionsCmd(a *app) *cobra.Command {
	var sizes bool
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List non-empty collections with document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *edoc.Session) error {
				names, err := s.Conn().Collections(ctx)
				if err != nil {
					return err
				}
				sc, _ := s.Conn().(docstore.StatsConn)
				for _, name := range names {
					n, err := s.Conn().Count(ctx, name)
					if err != nil {
						return err
					}
					if !sizes || sc == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, n)
						continue
					}
					st, err := sc.Stats(ctx, name)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\t%d\n", name, n, st.DataSize, st.DataAlloc)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&sizes, "sizes", false, "also print bytes in use and allocated")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [COLLECTION]",
		Short: "Print declared fields, or the JSON schema of a collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				scm := catalog.Lookup(args[0])
				if scm == nil {
					return fmt.Errorf("unknown collection %q", args[0])
				}
				fmt.Fprintln(out, scm.JSONSchema())
				return nil
			}
			for i, scm := range catalog.Schemas() {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s (key %s)\n", scm.Name(), scm.Key().Name())
				for _, f := range scm.Fields() {
					fmt.Fprintf(out, "  %s%s %v\n", f.Path(), strings.Repeat(" ", max(1, 24-len(f.Path()))), f.Kind())
				}
			}
			return nil
		},
	}
}
