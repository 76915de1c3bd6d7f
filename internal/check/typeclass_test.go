package check

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"diagaudit/internal/records"
	"diagaudit/internal/schema"
)

const typeclassDiag = `{
  "code": "typeclass.unresolved",
  "timestamp": "t",
  "audit": {
    "metadata": {
      "typeclass.trait": "Eq",
      "typeclass.type_args": ["i64"],
      "typeclass.constraint": "Eq<i64>",
      "typeclass.resolution_state": "pending",
      "typeclass.dictionary.kind": "builtin",
      "typeclass.dictionary.identifier": "Eq.i64",
      "typeclass.dictionary.repr": "eq_i64",
      "typeclass.pending": ["Eq<i64>"],
      "typeclass.generalized_typevars": ["T"],
      "typeclass.candidates": ["Eq.i64"]
    }
  },
  "extensions": {
    "typeclass": {
      "trait": "Eq", "constraint": "Eq<i64>", "resolution_state": "pending",
      "type_args": ["i64"], "pending": [], "generalized_typevars": [], "candidates": [],
      "dictionary": {"kind": "builtin", "identifier": "Eq.i64", "repr": "eq_i64"},
      "graph": {"export_dot": "digraph {}"}
    }
  }
}`

func TestTypeclassPasses(t *testing.T) {
	m := RunTypeclass(context.Background(), input(decode(t, typeclassDiag)))
	if m.Passed != 1 || *m.PassRate != 1.0 {
		t.Fatalf("metadata metric failures: %+v", m.Failures)
	}
	if len(m.Related) != 1 || m.Related[0].Name != "typeclass.dictionary_pass_rate" || m.Related[0].Passed != 1 {
		t.Fatalf("dictionary metric: %+v", m.Related)
	}
}

func TestDictionaryNoneKindIsAbsent(t *testing.T) {
	d := decode(t, typeclassDiag)
	dict := records.Sub(records.Sub(records.Sub(d, "extensions"), "typeclass"), "dictionary")
	dict["kind"] = "None"
	f := Dictionary{}.Inspect(d)
	if !reflect.DeepEqual(f.Missing, []string{"extensions.typeclass.dictionary.kind"}) {
		t.Fatalf("missing = %v", f.Missing)
	}
}

func TestDictionaryAuditEitherContainer(t *testing.T) {
	audit := decode(t, `{
	  "typeclass": {"dictionary": {"kind": "impl", "identifier": "Eq.User", "repr": "x"}},
	  "metadata": {"typeclass.dictionary.kind": "none"}
	}`)
	if got := dictionaryAudit(audit); got != nil {
		t.Fatalf("audit root holds a full dictionary, got %v", got)
	}
	delete(audit, "typeclass")
	got := dictionaryAudit(audit)
	want := []string{
		"audit.metadata.typeclass.dictionary.identifier",
		"audit.metadata.typeclass.dictionary.kind",
		"audit.metadata.typeclass.dictionary.repr",
		"audit.typeclass.dictionary.identifier",
		"audit.typeclass.dictionary.kind",
		"audit.typeclass.dictionary.repr",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dictionaryAudit = %v, want %v", got, want)
	}
}

func TestTypeclassAuditLogs(t *testing.T) {
	in := input()
	in.AuditLogs = []AuditLog{{
		Path: "audit.jsonl",
		Entries: []records.Record{
			decode(t, `{"category": "ffi.bridge"}`),
			decode(t, `{"category": "typeclass.resolve", "metadata": {"typeclass.trait": "Eq"}}`),
		},
	}}
	m := RunTypeclass(context.Background(), in)
	if m.Total != 1 || m.Failures[0].Code != "typeclass.resolve" || *m.Failures[0].Index != 1 {
		t.Fatalf("metric = %+v", m)
	}
	if !reflect.DeepEqual(m.AuditSources, []string{"audit.jsonl"}) {
		t.Fatalf("audit sources = %v", m.AuditSources)
	}
}

func TestTypeclassAuditKeyLocations(t *testing.T) {
	keys := schema.MustLookup(schema.Typeclass).AuditKeys
	nested := func(key string) map[string]any {
		root := map[string]any{}
		cur := root
		parts := strings.Split(key, ".")
		for _, p := range parts[:len(parts)-1] {
			next := map[string]any{}
			cur[p] = next
			cur = next
		}
		cur[parts[len(parts)-1]] = "x"
		return root
	}
	tests := []struct {
		name string
		put  func(audit records.Record, key string)
	}{
		{"flat in metadata object", func(a records.Record, k string) {
			records.Sub(a, "metadata")[k] = "x"
		}},
		{"nested in metadata object", func(a records.Record, k string) {
			meta := records.Sub(a, "metadata")
			for top, v := range nested(k) {
				meta[top] = mergeMaps(meta[top], v)
			}
		}},
		{"flat metadata key on audit", func(a records.Record, k string) { a["metadata."+k] = "x" }},
		{"audit root", func(a records.Record, k string) { a[k] = "x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := records.Record{"metadata": map[string]any{}}
			for _, k := range keys {
				tt.put(audit, k)
			}
			if got := typeclassAudit(audit); len(got) != 0 {
				t.Fatalf("typeclassAudit = %v, want none missing", got)
			}
		})
	}

	blank := records.Record{"metadata": map[string]any{}}
	for _, k := range keys {
		records.Sub(blank, "metadata")[k] = "x"
	}
	records.Sub(blank, "metadata")["typeclass.constraint"] = ""
	records.Sub(blank, "metadata")["typeclass.pending"] = []any{}
	want := []string{"typeclass.constraint", "typeclass.pending"}
	if got := typeclassAudit(blank); !reflect.DeepEqual(got, want) {
		t.Fatalf("typeclassAudit = %v, want %v", got, want)
	}
	if got := typeclassAudit(nil); !reflect.DeepEqual(got, keys) {
		t.Fatalf("nil audit = %v, want every key", got)
	}
}

func mergeMaps(dst, src any) any {
	d, ok := dst.(map[string]any)
	if !ok {
		return src
	}
	for k, v := range src.(map[string]any) {
		d[k] = mergeMaps(d[k], v)
	}
	return d
}
