// Package resolve looks up logical audit fields that upstream emitters store
// under several aliases, either as flat dotted keys or as nested objects.
package resolve

import (
	"slices"
	"strings"

	"diagaudit/internal/records"
)

// RequiredField names one logical field and the paths it may live under.
type RequiredField struct {
	Logical    string
	Candidates []string
	AllowEmpty bool
	AllowNull  bool
	// Shape, when set, rejects present non-null values by returning a
	// reason. Rejected values resolve as Malformed.
	Shape func(any) string
}

// Field builds a RequiredField. With no candidates the logical name is its
// own only path.
func Field(logical string, candidates ...string) RequiredField {
	if len(candidates) == 0 {
		candidates = []string{logical}
	}
	return RequiredField{Logical: logical, Candidates: candidates}
}

// Empty returns a copy that accepts "" and [] as present.
func (f RequiredField) Empty() RequiredField {
	f.AllowEmpty = true
	return f
}

// Null returns a copy that accepts null as present.
func (f RequiredField) Null() RequiredField {
	f.AllowNull = true
	return f
}

// Shaped returns a copy validated by shape.
func (f RequiredField) Shaped(shape func(any) string) RequiredField {
	f.Shape = shape
	return f
}

// List is a Shape that accepts JSON arrays only.
func List(v any) string {
	if _, ok := v.([]any); !ok {
		return "not a list"
	}
	return ""
}

// Kind tags a Result.
type Kind uint8

const (
	// NotFound: no candidate path exists in any container.
	NotFound Kind = iota
	// Found: the first acceptable value.
	Found
	// Malformed: a path exists but every value found was rejected.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "missing"
	}
}

// Result is the outcome of resolving one field.
type Result struct {
	Kind   Kind
	Value  any
	Path   string
	Reason string
}

// OK reports whether the field resolved to an acceptable value.
func (r Result) OK() bool { return r.Kind == Found }

// Lookup resolves a dotted path inside container. A literal key equal to the
// whole path wins over key-by-key descent.
func Lookup(container records.Record, path string) (any, bool) {
	if container == nil {
		return nil, false
	}
	if v, ok := container[path]; ok {
		return v, true
	}
	var current any = container
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[part]
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// Value is Lookup without the presence flag.
func Value(container records.Record, path string) any {
	v, _ := Lookup(container, path)
	return v
}

// Containers returns the precedence list for an audit object: the object
// itself, then its metadata when that is an object.
func Containers(audit records.Record) []records.Record {
	if audit == nil {
		return nil
	}
	out := []records.Record{audit}
	if meta := records.Sub(audit, "metadata"); meta != nil {
		out = append(out, meta)
	}
	return out
}

// Resolve walks containers in order and candidates in order; the first
// acceptable value wins.
func Resolve(containers []records.Record, spec RequiredField) Result {
	res := Result{Kind: NotFound}
	for _, container := range containers {
		for _, candidate := range spec.Candidates {
			value, ok := Lookup(container, candidate)
			if !ok {
				continue
			}
			if reason := reject(value, spec); reason != "" {
				if res.Kind == NotFound {
					res = Result{Kind: Malformed, Path: candidate, Reason: reason}
				}
				continue
			}
			return Result{Kind: Found, Value: value, Path: candidate}
		}
	}
	return res
}

func reject(value any, spec RequiredField) string {
	if value == nil {
		if spec.AllowNull {
			return ""
		}
		return "null"
	}
	if records.IsBlank(value) && !spec.AllowEmpty {
		return "empty"
	}
	if spec.Shape != nil {
		return spec.Shape(value)
	}
	return ""
}

// Missing returns the sorted logical names that do not resolve against the
// audit object. A nil audit reports "audit" plus every field.
func Missing(audit records.Record, fields []RequiredField) []string {
	if audit == nil {
		out := make([]string, 0, len(fields)+1)
		out = append(out, "audit")
		for _, f := range fields {
			out = append(out, f.Logical)
		}
		return Unique(out)
	}
	containers := Containers(audit)
	var out []string
	for _, f := range fields {
		if !Resolve(containers, f).OK() {
			out = append(out, f.Logical)
		}
	}
	return Unique(out)
}

// Logicals lists the logical names of fields in declaration order.
func Logicals(fields []RequiredField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Logical
	}
	return out
}

// HasPath is the strict presence test: the value must exist and be neither
// null, "" nor [].
func HasPath(data records.Record, dotted string) bool {
	value, ok := Lookup(data, dotted)
	return ok && !records.IsBlank(value)
}

// HasAnyPath reports whether any of paths passes HasPath.
func HasAnyPath(data records.Record, paths ...string) bool {
	for _, p := range paths {
		if HasPath(data, p) {
			return true
		}
	}
	return false
}

// Unique sorts names and drops duplicates. The input slice is not modified.
func Unique(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := slices.Clone(names)
	slices.Sort(out)
	return slices.Compact(out)
}
