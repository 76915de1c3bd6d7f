package auditindex

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"diagaudit/internal/records"
)

func TestParseSpec(t *testing.T) {
	s, err := ParseSpec("ci:linux-x86_64:logs/a.jsonl:success:full:1.0")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if s.Profile != "ci" || s.Target != "linux-x86_64" || s.Path != "logs/a.jsonl" || s.Status != "success" || s.AuditLevel != "full" {
		t.Fatalf("spec = %+v", s)
	}
	if s.PassRate == nil || *s.PassRate != 1 {
		t.Fatalf("pass rate = %v", s.PassRate)
	}

	s, err = ParseSpec("::x.json::")
	if err != nil {
		t.Fatalf("ParseSpec defaults: %v", err)
	}
	if s.Profile != DefaultProfile || s.Target != DefaultTarget || s.Status != DefaultStatus || s.AuditLevel != DefaultAuditLevel || s.PassRate != nil {
		t.Fatalf("defaults = %+v", s)
	}

	for _, bad := range []string{"ci:linux", "ci:linux:p:ok:full:fast"} {
		if _, err := ParseSpec(bad); err == nil {
			t.Fatalf("ParseSpec(%q) succeeded", bad)
		}
	}
}

func TestBuildEntryAndSummarize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jsonl")
	if err := os.WriteFile(path, []byte("0123456789"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	e, err := BuildEntry(Spec{Profile: "ci", Target: "linux", Path: path, Status: "success", AuditLevel: "full"}, "42", "2024-01-01T00:00:00Z", "abc")
	if err != nil {
		t.Fatalf("BuildEntry: %v", err)
	}
	if e.SizeBytes != "10" || e.AuditStore != "ci" || e.Commit != "abc" {
		t.Fatalf("entry = %+v", e)
	}
	if _, err := BuildEntry(Spec{Path: filepath.Join(dir, "absent")}, "1", "", ""); err == nil {
		t.Fatalf("BuildEntry on a missing file succeeded")
	}

	idx := New([]Entry{e, e}, nil)
	want := []Retained{{Profile: "ci", Target: "linux", Count: 2, SizeBytes: 20}}
	if len(idx.RetainedEntries) != 1 || idx.RetainedEntries[0] != want[0] {
		t.Fatalf("retained = %+v, want %+v", idx.RetainedEntries, want)
	}

	sorted := Summarize([]records.Record{
		{"profile": "local", "target": "b"},
		{"store": "ci", "platform": "z", "size_bytes": 3.0},
		{"audit_store": "ci", "triple": "a"},
		{},
	})
	var got []string
	for _, r := range sorted {
		got = append(got, r.Profile+"/"+r.Target)
	}
	if strings.Join(got, ",") != "ci/<unknown>,ci/a,ci/z,local/b" {
		t.Fatalf("Summarize order = %v", got)
	}
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 4, 5, 6, 7, 890, time.FixedZone("x", 3600))
	if got := Timestamp(ts); got != "2024-03-04T04:06:07Z" {
		t.Fatalf("Timestamp = %s", got)
	}
}

const goodEvent = `{"metadata":{"cli.audit_id":"a","cli.change_set":"c","schema":{"version":"v"},"parse.input_name":"x","parse.stage_trace":["lex"]}}`

func TestVerify(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "good.jsonl"), []byte(goodEvent+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	bridge := `{"metadata":{"cli.audit_id":"a","cli.change_set":"c","schema.version":"v","bridge.status":"ok"}}`
	if err := os.WriteFile(filepath.Join(root, "bridge.json"), []byte(bridge), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	index := records.Record{
		"entries": []any{
			map[string]any{"profile": "ci", "target": "linux", "path": "good.jsonl", "size_bytes": "999"},
			map[string]any{"profile": "ci", "target": "mac", "path": "bridge.json"},
			map[string]any{"profile": "ci", "target": "win", "path": "missing.jsonl"},
		},
		"retained_entries": []any{
			map[string]any{"profile": "ci", "target": "linux", "count": 1.0, "size_bytes": 999.0},
		},
	}
	issues := Verify(index, VerifyOptions{Root: root})
	text := joinIssues(issues)
	for _, want := range []string{
		"[warning] size_bytes does not match",
		"bridge metadata missing required keys: bridge.abi",
		"[warning] " + filepath.Join(root, "bridge.json") + ":0 bridge metadata missing recommended keys",
		"audit file does not exist",
		"retained_entries mismatch for (ci, mac)",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("issues missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "(ci, linux)") {
		t.Fatalf("linux summary reported as mismatched:\n%s", text)
	}

	strict := joinIssues(Verify(index, VerifyOptions{Root: root, Strict: true}))
	if !strings.Contains(strict, "[error] "+filepath.Join(root, "bridge.json")+":0 bridge metadata missing recommended keys") {
		t.Fatalf("strict mode did not promote recommended keys:\n%s", strict)
	}
}

func TestVerifyHistory(t *testing.T) {
	root := t.TempDir()
	hist := filepath.Join(root, "history")
	if err := os.MkdirAll(hist, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGzip(t, filepath.Join(hist, "ok.jsonl.gz"), goodEvent+"\n")
	writeGzip(t, filepath.Join(hist, "bad.jsonl.gz"), "{\"a\":1}\n{oops\n")

	issues := Verify(records.Record{"entries": []any{}}, VerifyOptions{Root: root, HistoryDir: "history"})
	if Errors(issues) != 1 || !strings.Contains(issues[0].Message, "bad.jsonl.gz") {
		t.Fatalf("issues = %v", issues)
	}
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func joinIssues(issues []Issue) string {
	var b strings.Builder
	for _, i := range issues {
		b.WriteString(i.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func TestSummaryMarkdown(t *testing.T) {
	index := records.Record{
		"entries": []any{
			map[string]any{"profile": "ci", "target": "linux", "build_id": "1", "pass_rate": 0.5},
			map[string]any{"profile": "ci", "target": "linux", "build_id": "2", "pass_rate": 1.0, "audit_level": "full", "path": "a.jsonl"},
		},
		"pruned": []any{"0"},
	}
	md := SummaryMarkdown(index)
	for _, want := range []string{"- entries: 2", "- previously pruned builds: 1", "| ci | linux | 2 | 2 | 1.000 | full | `a.jsonl` |"} {
		if !strings.Contains(md, want) {
			t.Fatalf("summary missing %q:\n%s", want, md)
		}
	}
	if got := SummaryMarkdown(records.Record{}); !strings.Contains(got, "No entries.") {
		t.Fatalf("empty summary = %q", got)
	}
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.json")
	if err := Write(path, New(nil, []string{"7"})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	index, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	entries, err := Entries(index)
	if err != nil || len(entries) != 0 {
		t.Fatalf("Entries = %v, %v", entries, err)
	}
	if pruned := index["pruned"].([]any); len(pruned) != 1 || pruned[0] != "7" {
		t.Fatalf("pruned = %v", pruned)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int64
		wantOK bool
	}{
		{float64(1024), 1024, true},
		{float64(0), 0, true},
		{2.5, 0, false},
		{int64(7), 7, true},
		{"42", 42, true},
		{"4.2", 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Fatalf("ParseInt(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
