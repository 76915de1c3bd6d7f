package jsondiff

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		t.Fatalf("decode %s: %v", src, err)
	}
	return v
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name                    string
		a, b                    string
		added, removed, changed string
	}{
		{"identical", `{"a":[1,{"b":2}]}`, `{"a":[1,{"b":2}]}`, "", "", ""},
		{"disjoint", `{"x":1,"y":2}`, `{"z":3}`, "z", "x,y", ""},
		{"nested change", `{"a":{"b":1}}`, `{"a":{"b":2}}`, "", "", "a.b"},
		{"array growth", `{"l":[1]}`, `{"l":[1,2,3]}`, "l[1],l[2]", "", ""},
		{"array shrink", `[1,2]`, `[1]`, "", "[1]", ""},
		{"root scalar", `1`, `2`, "", "", "."},
		{"type change", `{"a":[1]}`, `{"a":{"0":1}}`, "", "", "a"},
		{"index path", `[{"k":"v"}]`, `[{"k":"w"}]`, "", "", "[0].k"},
	}
	for _, tt := range tests {
		added, removed, changed := Diff(decode(t, tt.a), decode(t, tt.b))
		if got := strings.Join(added, ","); got != tt.added {
			t.Fatalf("%s: added = %q, want %q", tt.name, got, tt.added)
		}
		if got := strings.Join(removed, ","); got != tt.removed {
			t.Fatalf("%s: removed = %q, want %q", tt.name, got, tt.removed)
		}
		if got := strings.Join(changed, ","); got != tt.changed {
			t.Fatalf("%s: changed = %q, want %q", tt.name, got, tt.changed)
		}
	}
}

func TestDiffSelfIsEmpty(t *testing.T) {
	for _, src := range []string{`null`, `"s"`, `[]`, `{"a":{"b":[1,null,true,{"c":"d"}]}}`} {
		if v := decode(t, src); !Equal(v, v) {
			t.Fatalf("Diff(%s, %s) is not empty", src, src)
		}
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCompareDirs(t *testing.T) {
	base := t.TempDir()
	actual := t.TempDir()
	write(t, filepath.Join(base, "same.json.golden"), `{"a":1}`)
	write(t, filepath.Join(actual, "same.actual.json"), `{"a":1}`)
	write(t, filepath.Join(base, "sub", "diff.json.golden"), `{"a":1,"gone":true}`)
	write(t, filepath.Join(actual, "sub", "diff.actual.json"), `{"a":2,"extra":[]}`)
	write(t, filepath.Join(actual, "fresh.actual.json"), `{}`)
	write(t, filepath.Join(base, "lost.json.golden"), `{}`)

	res, err := CompareDirs(base, actual)
	if err != nil {
		t.Fatalf("CompareDirs: %v", err)
	}
	if res.Summary != (Summary{Changed: 1, New: 1, MissingActual: 1}) {
		t.Fatalf("summary = %+v", res.Summary)
	}
	byFile := map[string]Entry{}
	for _, e := range res.Entries {
		byFile[e.File] = e
	}
	changed := byFile["sub/diff.json.golden"]
	if changed.Status != StatusChanged || strings.Join(changed.Added, ",") != "extra" ||
		strings.Join(changed.Removed, ",") != "gone" || strings.Join(changed.Changed, ",") != "a" {
		t.Fatalf("changed entry = %+v", changed)
	}
	if byFile["fresh.json.golden"].Status != StatusNew {
		t.Fatalf("fresh entry = %+v", byFile["fresh.json.golden"])
	}
	if byFile["lost.json.golden"].Status != StatusMissingActual {
		t.Fatalf("lost entry = %+v", byFile["lost.json.golden"])
	}

	var md strings.Builder
	if err := res.WriteMarkdown(&md); err != nil {
		t.Fatalf("WriteMarkdown: %v", err)
	}
	if !strings.Contains(md.String(), "### sub/diff.json.golden") {
		t.Fatalf("markdown:\n%s", md.String())
	}

	if _, err := CompareDirs(filepath.Join(base, "nope"), actual); err == nil {
		t.Fatalf("CompareDirs accepted a missing baseline")
	}
}
