package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, dir string, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("** edoc %s failed: %v\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func runErr(t *testing.T, dir string, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	return cmd.Execute()
}

func decodeLines[T any](t *testing.T, out string) []T {
	t.Helper()
	var result []T
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			t.Fatalf("** invalid output line %q: %v", line, err)
		}
		result = append(result, v)
	}
	return result
}

func TestCLI_seedAndFind(t *testing.T) {
	dir := t.TempDir()
	out := run(t, dir, "", "seed")
	if n := strings.Count(out, "\n"); n != 3 {
		t.Fatalf("** seed printed %d lines, wanted 3:\n%s", n, out)
	}
	if _, err := os.Stat(filepath.Join(dir, "catalog.db")); err != nil {
		t.Fatalf("** database file not created: %v", err)
	}

	products := decodeLines[Product](t, run(t, dir, "", "find", "--sku", "00e8da9b"))
	if len(products) != 1 {
		t.Fatalf("** found %d products, wanted 1", len(products))
	}
	p := products[0]
	if p.Title != "A Love Supreme" || p.Pricing == nil || p.Pricing.List != 1200 || p.Pricing.PCTSavings != 8 {
		t.Errorf("** found %+v", p)
	}

	products = decodeLines[Product](t, run(t, dir, "", "find", "--min-price", "1000"))
	if len(products) != 2 {
		t.Errorf("** --min-price 1000 found %d products, wanted 2", len(products))
	}

	albums := decodeLines[Album](t, run(t, dir, "", "find", "--artist", "Miles Davis"))
	if len(albums) != 1 || albums[0].SKU != "0e0a8b6c" || albums[0].Details.Title != "Kind of Blue [Legacy Edition]" {
		t.Errorf("** --artist found %+v", albums)
	}

	out = run(t, dir, "", "collections")
	if out != "products\t3\n" {
		t.Errorf("** collections = %q", out)
	}
}

func TestCLI_insertAndDump(t *testing.T) {
	dir := t.TempDir()
	input := `[{"_id": "p1", "sku": "a", "pricing": {"list": 500}}, {"sku": "b", "pricing": {"list": 1500}}]`
	out := run(t, dir, input, "insert", "-")
	ids := strings.Fields(out)
	if len(ids) != 2 || ids[0] != "p1" {
		t.Fatalf("** insert printed %q", out)
	}

	docs := decodeLines[map[string]any](t, run(t, dir, "", "dump", "products", "--filter", `{"pricing.list": {"$gt": 1000}}`))
	if len(docs) != 1 || docs[0]["sku"] != "b" || docs[0]["_id"] != ids[1] {
		t.Errorf("** dump = %v", docs)
	}

	if err := runErr(t, dir, "dump", "products", "--filter", `{"pricing.list": {"$near": 1}}`); err == nil {
		t.Errorf("** unknown operator accepted")
	}
	if err := runErr(t, dir, "insert", "-"); err == nil {
		t.Errorf("** empty input accepted")
	}
}

func TestCLI_insertRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(file, []byte(`{"sku": "x", "pricing": {"list": "cheap"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	err := runErr(t, dir, "insert", file)
	if err == nil || !strings.Contains(err.Error(), "pricing.list") {
		t.Fatalf("** err = %v, wanted a type mismatch on pricing.list", err)
	}
}

func TestCLI_configFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EDOC_DATABASE", "fromenv")
	run(t, dir, "", "seed")
	if _, err := os.Stat(filepath.Join(dir, "fromenv.db")); err != nil {
		t.Errorf("** EDOC_DATABASE ignored: %v", err)
	}

	conf := filepath.Join(dir, "edoc.yaml")
	if err := os.WriteFile(conf, []byte("database: fromfile\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EDOC_DATABASE", "")
	os.Unsetenv("EDOC_DATABASE")
	run(t, dir, "", "--config", conf, "seed")
	if _, err := os.Stat(filepath.Join(dir, "fromfile.db")); err != nil {
		t.Errorf("** config file ignored: %v", err)
	}

	run(t, dir, "", "--config", conf, "--db", "fromflag", "seed")
	if _, err := os.Stat(filepath.Join(dir, "fromflag.db")); err != nil {
		t.Errorf("** --db ignored: %v", err)
	}
}

func TestCLI_schema(t *testing.T) {
	out := run(t, t.TempDir(), "", "schema")
	for _, want := range []string{"products (key _id)", "pricing.pct_savings", "shipping.dimensions.width", "details.pct_savings"} {
		if !strings.Contains(out, want) {
			t.Errorf("** schema output lacks %q:\n%s", want, out)
		}
	}
	out = run(t, t.TempDir(), "", "schema", "products")
	if !strings.Contains(out, `"additionalProperties": false`) {
		t.Errorf("** JSON schema output:\n%s", out)
	}
}

func TestCLI_collectionSizes(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "", "seed")
	fields := strings.Fields(run(t, dir, "", "collections", "--sizes"))
	if len(fields) != 4 || fields[0] != "products" || fields[1] != "3" || fields[2] == "0" {
		t.Errorf("** collections --sizes = %q", fields)
	}
}
