package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"diagaudit/internal/records"
)

func TestLoaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	src := filepath.Join(dir, "log.jsonl")
	content := "{\"code\":\"a\",\"metadata\":{\"pass_rate\":0.5,\"tags\":[\"x\",null,true]}}\n{\"code\":\"b\"}\n"
	if err := os.WriteFile(src, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(c)
	first, err := l.Records(src)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	second, err := l.Records(src)
	if err != nil {
		t.Fatalf("Records (cached): %v", err)
	}
	if hits, misses := l.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("stats = %d hits, %d misses", hits, misses)
	}
	if len(second) != len(first) {
		t.Fatalf("cached records = %v", second)
	}
	meta := records.Sub(second[0], "metadata")
	if rate, ok := meta["pass_rate"].(float64); !ok || rate != 0.5 {
		t.Fatalf("pass_rate after round trip = %#v", meta["pass_rate"])
	}
	tags, ok := meta["tags"].([]any)
	if !ok || len(tags) != 3 || tags[0] != "x" || tags[1] != nil || tags[2] != true {
		t.Fatalf("tags after round trip = %#v", meta["tags"])
	}
}

func TestLoaderCollection(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	src := filepath.Join(dir, "diags.json")
	if err := os.WriteFile(src, []byte(`{"diagnostics":[{"code":"x","audit":{"metadata":{"k":"v"}}}]}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := NewLoader(c)
	cols, err := records.LoadCollections(context.Background(), l, []string{src, src}, 2)
	if err != nil {
		t.Fatalf("LoadCollections: %v", err)
	}
	for _, col := range cols {
		if len(col.Diagnostics) != 1 || col.Path != src {
			t.Fatalf("collection = %+v", col)
		}
	}
	if _, err := l.Collection(src); err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if hits, _ := l.Stats(); hits < 1 {
		t.Fatalf("expected at least one cache hit")
	}
}

func TestDecodeErrorsAreNotCached(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	src := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(src, []byte("{\"a\":1}\n{broken\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	l := NewLoader(c)
	for range 2 {
		if _, err := l.Records(src); err == nil {
			t.Fatalf("Records on malformed input succeeded")
		}
	}
	if hits, _ := l.Stats(); hits != 0 {
		t.Fatalf("malformed input served from cache")
	}
}

func TestGetMissAndDropAll(t *testing.T) {
	c, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := Key(kindRecords, []byte("x"))
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}
	if err := c.Put(key, &Payload{Schema: schemaVersion, Kind: kindRecords}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := c.Get(key); !ok {
		t.Fatalf("Get after Put missed")
	}
	if err := c.Put(key, &Payload{Schema: schemaVersion + 1, Kind: kindRecords}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, _ := c.Get(key); ok {
		t.Fatalf("stale schema served")
	}
	if err := c.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if Key(kindRecords, []byte("x")) == Key(kindDocument, []byte("x")) {
		t.Fatalf("kinds share a key")
	}
}
