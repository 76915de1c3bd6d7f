// Package auditdiff compares audit log snapshots and filters them with a small
// query language.
package auditdiff

import (
	"strings"
	"time"

	"diagaudit/internal/records"
)

// UnknownCategory is used when an entry names no category and no code.
const UnknownCategory = "<unknown>"

// Entry is an audit log record reduced to the fields the diff and query tools
// look at. Raw keeps the original record.
type Entry struct {
	Category   string
	Code       *string
	Severity   string
	Timestamp  *time.Time
	AuditID    string
	CLIAuditID string
	ChangeSet  string
	PassRate   *float64
	Metadata   records.Record
	Extensions records.Record
	Source     string
	Raw        records.Record
}

// Identity is the (category, code) pair entries are matched on.
type Identity struct {
	Category string
	Code     *string
}

func (id Identity) less(other Identity) bool {
	if id.Category != other.Category {
		return id.Category < other.Category
	}
	switch {
	case id.Code == nil:
		return other.Code != nil
	case other.Code == nil:
		return false
	}
	return *id.Code < *other.Code
}

type identityKey struct {
	category string
	code     string
	hasCode  bool
}

func (id Identity) key() identityKey {
	if id.Code == nil {
		return identityKey{category: id.Category}
	}
	return identityKey{category: id.Category, code: *id.Code, hasCode: true}
}

// Identity returns the entry's matching key.
func (e Entry) Identity() Identity {
	return Identity{Category: e.Category, Code: e.Code}
}

// CodeString returns the code or "" when absent.
func (e Entry) CodeString() string {
	if e.Code == nil {
		return ""
	}
	return *e.Code
}

// Load reads an audit log (JSON object, array or JSON Lines) and normalizes
// every record.
func Load(path string) ([]Entry, error) {
	recs, err := records.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Normalize(recs, path), nil
}

// Normalize converts decoded records into entries.
func Normalize(recs []records.Record, source string) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, NormalizeRecord(rec, source))
	}
	return out
}

// NormalizeRecord extracts the comparison fields from one record. Top-level
// keys win over metadata for code, severity and audit_id; metadata wins for
// category.
func NormalizeRecord(raw records.Record, source string) Entry {
	metadata := records.Sub(raw, "metadata")
	if metadata == nil {
		metadata = records.Record{}
	}
	extensions := records.Sub(raw, "extensions")
	if extensions == nil {
		extensions = records.Record{}
	}
	e := Entry{
		Category:   category(raw, metadata),
		Metadata:   metadata,
		Extensions: extensions,
		Source:     source,
		Raw:        raw,
	}
	if code, ok := firstOf(raw, metadata, "code"); ok {
		e.Code = &code
	}
	e.Severity, _ = firstOf(raw, metadata, "severity")
	e.AuditID, _ = firstOf(raw, metadata, "audit_id")
	if cli, ok := records.FirstString(metadata, "cli.audit_id"); ok {
		e.CLIAuditID = cli
	} else {
		e.CLIAuditID, _ = records.FirstString(extensions, "cli.audit_id")
	}
	e.ChangeSet = changeSet(metadata)

	ts, ok := records.String(raw, "timestamp")
	if !ok || ts == "" {
		ts, _ = records.String(metadata, "timestamp")
	}
	e.Timestamp = parseTimestamp(ts)

	if rate, ok := passRate(metadata); ok {
		e.PassRate = &rate
	} else if rate, ok := passRate(records.Sub(extensions, "bridge")); ok {
		e.PassRate = &rate
	}
	return e
}

func category(raw, metadata records.Record) string {
	if c, ok := records.FirstString(metadata, "category"); ok {
		return c
	}
	if c, ok := records.FirstString(raw, "category", "code"); ok {
		return c
	}
	return UnknownCategory
}

func firstOf(raw, metadata records.Record, key string) (string, bool) {
	if s, ok := records.FirstString(raw, key); ok {
		return s, true
	}
	return records.FirstString(metadata, key)
}

// changeSet follows truthiness: an empty cli.change_set falls through to
// change_set.
func changeSet(metadata records.Record) string {
	for _, key := range []string{"cli.change_set", "change_set"} {
		v, ok := metadata[key]
		if !ok || records.IsBlank(v) || v == false {
			continue
		}
		s, _ := v.(string)
		return s
	}
	return ""
}

func passRate(container records.Record) (float64, bool) {
	for _, key := range []string{"pass_rate", "bridge.audit_pass_rate", "audit_pass_rate"} {
		v, ok := container[key]
		if !ok || v == nil {
			continue
		}
		if f, ok := records.Float(v); ok {
			return f, true
		}
	}
	return 0, false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// ByCategory groups entries by category, preserving input order inside each
// group.
func ByCategory(entries []Entry) map[string][]Entry {
	out := make(map[string][]Entry)
	for _, e := range entries {
		out[e.Category] = append(out[e.Category], e)
	}
	return out
}
