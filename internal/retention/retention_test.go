package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"diagaudit/internal/records"
)

func entry(profile, target, id string) records.Record {
	return records.Record{"profile": profile, "target": target, "build_id": id}
}

func ids(entries []records.Record) string {
	var out []string
	for _, e := range entries {
		out = append(out, e["build_id"].(string))
	}
	return strings.Join(out, ",")
}

func TestPruneKeepsNewest(t *testing.T) {
	var entries []records.Record
	for i := range 5 {
		entries = append(entries, entry("ci", "linux", fmt.Sprint(i)))
	}
	kept, pruned := Prune(entries, Policy{"ci": 2, "default": 1})
	if got := ids(kept); got != "3,4" {
		t.Fatalf("kept = %s, want 3,4", got)
	}
	if got := ids(pruned); got != "0,1,2" {
		t.Fatalf("pruned = %s, want 0,1,2", got)
	}
}

func TestPruneGroups(t *testing.T) {
	entries := []records.Record{
		entry("ci", "linux", "a"),
		entry("ci", "mac", "b"),
		entry("local", "linux", "c"),
		entry("ci", "linux", "d"),
		entry("tmp", "linux", "e"),
		{"store": "local", "platform": "linux", "build_id": "f"},
		entry("nightly", "linux", "g"),
		entry("nightly", "linux", "h"),
	}
	policy := Policy{"ci": 1, "local": 1, "tmp": 0, "default": 1}
	kept, pruned := Prune(entries, policy)
	if got := ids(kept); got != "b,d,f,h" {
		t.Fatalf("kept = %s, want b,d,f,h", got)
	}
	if got := ids(pruned); got != "a,c,e,g" {
		t.Fatalf("pruned = %s, want a,c,e,g", got)
	}
	if len(kept)+len(pruned) != len(entries) {
		t.Fatalf("partition lost entries")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadPolicy(filepath.Join(dir, "absent.toml"))
	if err != nil {
		t.Fatalf("LoadPolicy(missing): %v", err)
	}
	if p["ci"] != 100 || p["local"] != 30 || p["tmp"] != 20 || p["default"] != 50 {
		t.Fatalf("defaults = %v", p)
	}

	path := filepath.Join(dir, "retention.toml")
	src := "[retain]\nci = 5\nlocal = -1\ntmp = \"many\"\nnightly = 0\nratio = 1.5\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err = LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p["ci"] != 5 || p["local"] != 30 || p["tmp"] != 20 || p["nightly"] != 0 {
		t.Fatalf("policy = %v", p)
	}
	if _, ok := p["ratio"]; ok {
		t.Fatalf("float quota accepted: %v", p)
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[retain\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadPolicy(bad); err == nil {
		t.Fatalf("LoadPolicy accepted malformed TOML")
	}
}

func TestApply(t *testing.T) {
	index := records.Record{
		"entries": []any{
			map[string]any{"profile": "ci", "target": "linux", "build_id": "1"},
			map[string]any{"profile": "ci", "target": "linux", "id": "2"},
			map[string]any{"profile": "ci", "target": "linux", "build_id": "3"},
		},
		"pruned": []any{"1", 7.0},
	}
	res := Apply(index, Policy{"ci": 1})
	if res.Kept != 1 || res.Pruned != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Logged) != 1 || res.Logged[0] != "2" {
		t.Fatalf("logged = %v, want [2]", res.Logged)
	}
	log := index["pruned"].([]any)
	if len(log) != 2 || log[0] != "1" || log[1] != "2" {
		t.Fatalf("pruned log = %v", log)
	}
	if kept := index["entries"].([]any); len(kept) != 1 {
		t.Fatalf("entries = %v", kept)
	}

	untouched := records.Record{"entries": []any{map[string]any{"build_id": "x"}}}
	if res := Apply(untouched, DefaultPolicy()); res.Pruned != 0 {
		t.Fatalf("default policy pruned a single entry")
	}
	if _, ok := untouched["pruned"]; ok {
		t.Fatalf("pruned log written without pruning")
	}
}
