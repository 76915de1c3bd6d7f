package auditdiff

import (
	"fmt"
	"strconv"
	"strings"

	"diagaudit/internal/resolve"
)

// Operators understood by the query language, in match order.
var operators = []string{"==", "!=", ">=", "<=", ">", "<", "~="}

// Condition is one `field op value` comparison.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Query is a disjunction of conjunctions: groups are joined by "or", the
// conditions inside a group by "and".
type Query struct {
	Groups [][]Condition
}

// Empty reports whether the query matches everything.
func (q Query) Empty() bool { return len(q.Groups) == 0 }

// ParseQuery parses expressions such as
//
//	metadata.bridge.platform == "windows-msvc" and severity == "Error"
//	category == "ffi.bridge" or pass_rate < 1.0
//	code in ["a", "b"]
func ParseQuery(expr string) (Query, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Query{}, nil
	}
	var q Query
	for part := range strings.SplitSeq(expr, " or ") {
		group, err := parseGroup(strings.TrimSpace(part))
		if err != nil {
			return Query{}, err
		}
		q.Groups = append(q.Groups, group)
	}
	return q, nil
}

func parseGroup(expr string) ([]Condition, error) {
	var out []Condition
	for part := range strings.SplitSeq(expr, " and ") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		out = append(out, cond)
	}
	return out, nil
}

func parseCondition(part string) (Condition, error) {
	for _, op := range operators {
		if field, value, ok := strings.Cut(part, op); ok {
			return Condition{
				Field:    strings.TrimSpace(field),
				Operator: op,
				Value:    parseValue(strings.TrimSpace(value)),
			}, nil
		}
	}
	if field, value, ok := strings.Cut(part, " in "); ok {
		return Condition{
			Field:    strings.TrimSpace(field),
			Operator: "in",
			Value:    parseValue(strings.TrimSpace(value)),
		}, nil
	}
	return Condition{}, fmt.Errorf("unsupported expression: %s", part)
}

func parseValue(token string) any {
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		inner := strings.TrimSpace(token[1 : len(token)-1])
		if inner == "" {
			return []string{}
		}
		var items []string
		for item := range strings.SplitSeq(inner, ",") {
			item = strings.TrimSpace(item)
			items = append(items, strings.Trim(item, `"'`))
		}
		return items
	}
	if len(token) >= 2 {
		if (token[0] == '"' && token[len(token)-1] == '"') || (token[0] == '\'' && token[len(token)-1] == '\'') {
			return token[1 : len(token)-1]
		}
	}
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return float64(n)
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	switch strings.ToLower(token) {
	case "true":
		return true
	case "false":
		return false
	}
	return token
}

// Match reports whether e satisfies the query.
func (q Query) Match(e Entry) bool {
	if q.Empty() {
		return true
	}
	for _, group := range q.Groups {
		if matchAll(e, group) {
			return true
		}
	}
	return false
}

func matchAll(e Entry, conds []Condition) bool {
	for _, c := range conds {
		if !c.Match(e) {
			return false
		}
	}
	return true
}

// Match evaluates the condition against e.
func (c Condition) Match(e Entry) bool {
	value := FieldValue(e, c.Field)
	switch c.Operator {
	case "==":
		return equal(value, c.Value)
	case "!=":
		return !equal(value, c.Value)
	case ">", "<", ">=", "<=":
		return compareNumbers(value, c.Value, c.Operator)
	case "~=":
		if value == nil {
			return false
		}
		return strings.Contains(scalarString(value), scalarString(c.Value))
	case "in":
		items, ok := c.Value.([]string)
		if !ok {
			return false
		}
		for _, item := range items {
			if equal(value, item) {
				return true
			}
		}
	}
	return false
}

// FieldValue resolves a query field against e. The normalized fields are
// addressed by name; metadata.* and extensions.* resolve inside those objects
// and anything else inside the raw record.
func FieldValue(e Entry, field string) any {
	switch field {
	case "category":
		return e.Category
	case "code":
		if e.Code == nil {
			return nil
		}
		return *e.Code
	case "severity":
		return optional(e.Severity)
	case "pass_rate":
		if e.PassRate == nil {
			return nil
		}
		return *e.PassRate
	case "audit_id":
		return optional(e.AuditID)
	case "cli.audit_id":
		return optional(e.CLIAuditID)
	case "change_set":
		return optional(e.ChangeSet)
	}
	if rest, ok := strings.CutPrefix(field, "metadata."); ok {
		return resolve.Value(e.Metadata, rest)
	}
	if rest, ok := strings.CutPrefix(field, "extensions."); ok {
		return resolve.Value(e.Extensions, rest)
	}
	return resolve.Value(e.Raw, field)
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func equal(value, target any) bool {
	switch t := target.(type) {
	case float64:
		v, ok := value.(float64)
		return ok && v == t
	case string:
		v, ok := value.(string)
		return ok && v == t
	case bool:
		v, ok := value.(bool)
		return ok && v == t
	case []string:
		items, ok := value.([]any)
		if !ok || len(items) != len(t) {
			return false
		}
		for i, item := range items {
			if s, ok := item.(string); !ok || s != t[i] {
				return false
			}
		}
		return true
	}
	return false
}

func compareNumbers(value, target any, op string) bool {
	v, ok := value.(float64)
	if !ok {
		return false
	}
	t, ok := target.(float64)
	if !ok {
		return false
	}
	switch op {
	case ">":
		return v > t
	case "<":
		return v < t
	case ">=":
		return v >= t
	case "<=":
		return v <= t
	}
	return false
}

// Filter returns the entries matching query, in input order. An empty query
// returns entries unchanged.
func Filter(entries []Entry, query string) ([]Entry, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if q.Empty() {
		return entries, nil
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Coverage is the hit ratio of a query over a set of entries.
type Coverage struct {
	Preset   string   `json:"preset"`
	Matched  int      `json:"matched"`
	Total    int      `json:"total"`
	Coverage *float64 `json:"coverage"`
}

// NewCoverage summarizes matched out of total.
func NewCoverage(preset string, matched, total int) Coverage {
	c := Coverage{Preset: preset, Matched: matched, Total: total}
	if total > 0 {
		r := float64(matched) / float64(total)
		c.Coverage = &r
	}
	return c
}
