package auditdiff

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Flatten turns the entry's metadata (and optionally its extensions under an
// "extensions." prefix) into dotted keys mapped to string values. Arrays become
// canonical JSON, nil becomes "".
func Flatten(e Entry, includeExtensions bool) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", e.Metadata)
	if includeExtensions {
		flattenInto(out, "extensions", e.Extensions)
	}
	return out
}

func flattenInto(out map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flattenInto(out, next, child)
		}
	case []any:
		out[prefix] = canonicalJSON(v)
	default:
		out[prefix] = scalarString(v)
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// canonicalJSON encodes v with sorted object keys and unescaped HTML
// characters.
func canonicalJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func sameFlat(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		if vb, ok := b[k]; !ok || vb != va {
			return false
		}
	}
	return true
}

