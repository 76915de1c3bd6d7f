package records

import (
	"strings"
)

// Record is one decoded JSON object: a diagnostic, an audit log event or an
// index entry.
type Record = map[string]any

// AsRecord returns v as a Record when it is a JSON object.
func AsRecord(v any) (Record, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Sub returns the object stored under key, or nil.
func Sub(r Record, key string) Record {
	if r == nil {
		return nil
	}
	m, _ := AsRecord(r[key])
	return m
}

// String returns the string stored under key.
func String(r Record, key string) (string, bool) {
	if r == nil {
		return "", false
	}
	s, ok := r[key].(string)
	return s, ok
}

// NonEmptyString returns v trimmed when it is a string with visible content.
func NonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FirstString returns the first non-empty string stored under any of keys.
func FirstString(r Record, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := String(r, key); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Codes returns the string items of the diagnostic's `codes` list.
func Codes(d Record) []string {
	raw, ok := d["codes"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// PrimaryCode returns `code`, falling back to the first non-empty entry of
// `codes`.
func PrimaryCode(d Record) (string, bool) {
	if code, ok := String(d, "code"); ok && code != "" {
		return code, true
	}
	codes := Codes(d)
	if len(codes) > 0 {
		return codes[0], true
	}
	return "", false
}

// HasCode reports whether the primary code or any entry of `codes` equals code.
func HasCode(d Record, code string) bool {
	if primary, ok := PrimaryCode(d); ok && primary == code {
		return true
	}
	for _, c := range Codes(d) {
		if c == code {
			return true
		}
	}
	return false
}

// HasCodePrefix reports whether the primary code or any entry of `codes`
// starts with prefix.
func HasCodePrefix(d Record, prefix string) bool {
	if primary, ok := PrimaryCode(d); ok && strings.HasPrefix(primary, prefix) {
		return true
	}
	for _, c := range Codes(d) {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// SchemaVersion returns `schema_version`, falling back to the nested
// `extensions["diagnostic.v2"].schema_version`.
func SchemaVersion(d Record) (string, bool) {
	if v, ok := String(d, "schema_version"); ok && v != "" {
		return v, true
	}
	nested := Sub(Sub(d, "extensions"), "diagnostic.v2")
	if v, ok := String(nested, "schema_version"); ok && v != "" {
		return v, true
	}
	return "", false
}

// HasTimestamp reports whether the record carries a non-blank timestamp string.
func HasTimestamp(d Record) bool {
	_, ok := NonEmptyString(d["timestamp"])
	return ok
}

// IsBlank reports whether v is nil, an empty string or an empty list.
// Whitespace-only strings are not blank here; callers that need trimming use
// NonEmptyString.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	return false
}

// Float converts JSON numbers and numeric strings to float64.
func Float(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		return parseFloat(strings.TrimSpace(t))
	}
	return 0, false
}
