// Package auditindex builds, reads and verifies the audit log index that
// records which audit files each build produced.
package auditindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"fortio.org/safecast"

	"diagaudit/internal/records"
)

// Defaults used when an entry does not name its group.
const (
	DefaultProfile = "ci"
	DefaultTarget  = "<unknown>"
)

// ErrNoEntries is returned when an index has no entries array.
var ErrNoEntries = errors.New("index has no entries array")

// Retained summarizes the kept entries of one (profile, target) group.
type Retained struct {
	Profile   string `json:"profile"`
	Target    string `json:"target"`
	Count     int    `json:"count"`
	SizeBytes int64  `json:"size_bytes"`
}

// Index is a freshly built index document.
type Index struct {
	Entries         []Entry    `json:"entries"`
	RetainedEntries []Retained `json:"retained_entries"`
	Pruned          []string   `json:"pruned"`
}

// New wraps entries and computes the retained summary.
func New(entries []Entry, pruned []string) *Index {
	recs := make([]records.Record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, e.Record())
	}
	if pruned == nil {
		pruned = []string{}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Index{Entries: entries, RetainedEntries: Summarize(recs), Pruned: pruned}
}

// Profile returns the entry's profile from profile, store or audit_store.
func Profile(entry records.Record) string {
	if s, ok := records.FirstString(entry, "profile", "store", "audit_store"); ok {
		return s
	}
	return DefaultProfile
}

// Target returns the entry's target from target, platform or triple.
func Target(entry records.Record) string {
	if s, ok := records.FirstString(entry, "target", "platform", "triple"); ok {
		return s
	}
	return DefaultTarget
}

// Summarize counts entries and sums size_bytes per (profile, target), sorted
// by profile then target.
func Summarize(entries []records.Record) []Retained {
	type key struct{ profile, target string }
	acc := make(map[key]*Retained)
	for _, e := range entries {
		k := key{Profile(e), Target(e)}
		r, ok := acc[k]
		if !ok {
			r = &Retained{Profile: k.profile, Target: k.target}
			acc[k] = r
		}
		r.Count++
		if size, ok := ParseInt(e["size_bytes"]); ok {
			r.SizeBytes += size
		}
	}
	out := make([]Retained, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Profile != out[j].Profile {
			return out[i].Profile < out[j].Profile
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// ParseInt accepts integral JSON numbers and base-10 strings.
func ParseInt(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		n, err := safecast.Convert[int64](t)
		return n, err == nil
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Load reads an index document. The result keeps every key of the file so it
// can be written back unchanged apart from the fields a caller edits.
func Load(path string) (records.Record, error) {
	doc, err := records.LoadDocument(path)
	if err != nil {
		return nil, err
	}
	index, ok := records.AsRecord(doc)
	if !ok {
		return nil, fmt.Errorf("%s: index is not a JSON object", path)
	}
	return index, nil
}

// Entries returns the object items of the index's entries array.
func Entries(index records.Record) ([]records.Record, error) {
	raw, ok := index["entries"].([]any)
	if !ok {
		return nil, ErrNoEntries
	}
	out := make([]records.Record, 0, len(raw))
	for _, item := range raw {
		if rec, ok := records.AsRecord(item); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Write stores v as indented JSON with a trailing newline, replacing path
// atomically.
func Write(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
