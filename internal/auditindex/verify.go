package auditindex

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"diagaudit/internal/records"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one verification finding.
type Issue struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (i Issue) String() string { return "[" + i.Severity + "] " + i.Message }

func errorf(format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Message: fmt.Sprintf(format, args...)}
}

func warnf(format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

// Errors counts the error-level issues.
func Errors(issues []Issue) int {
	n := 0
	for _, i := range issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

// VerifyOptions configures Verify.
type VerifyOptions struct {
	// Root resolves relative entry paths.
	Root string
	// HistoryDir holds archived *.jsonl.gz logs; it is skipped when absent.
	// Relative paths resolve against Root.
	HistoryDir string
	// MaxEvents bounds the events inspected per audit file; zero means all.
	MaxEvents int
	// Strict promotes missing recommended keys to errors.
	Strict bool
}

// Metadata key groups checked on every audit event.
var (
	commonRequired = []string{"cli.audit_id", "cli.change_set", "schema.version"}

	bridgeRequired = []string{
		"bridge.status", "bridge.target", "bridge.arch", "bridge.abi",
		"bridge.ownership", "bridge.extern_symbol", "bridge.platform",
		"bridge.return.ownership", "bridge.return.status", "bridge.return.wrap",
		"bridge.return.release_handler", "bridge.return.rc_adjustment",
	}
	bridgeShould = []string{"bridge.audit_pass_rate", "bridge.expected_abi", "bridge.callconv"}

	effectRequired = []string{
		"effect.stage.required", "effect.stage.actual", "effect.capability",
		"effect.stage.iterator.required", "effect.stage.iterator.actual",
		"effect.stage.iterator.kind", "effect.stage.iterator.capability",
		"effect.stage.iterator.source",
	}
	effectShould = []string{
		"effect.residual", "effect.handler_stack",
		"effect.unhandled_operations", "effect.capability_descriptor",
	}

	typeclassRequired = []string{"typeclass.constraint", "typeclass.resolution_state"}
	typeclassShould   = []string{
		"typeclass.dictionary", "typeclass.candidates", "typeclass.pending",
		"typeclass.generalized_typevars", "typeclass.graph.export_dot",
	}

	parseRequired = []string{"parse.input_name", "parse.stage_trace"}
)

type keyGroup struct {
	name     string
	required []string
	should   []string
}

var keyGroups = []keyGroup{
	{"bridge", bridgeRequired, bridgeShould},
	{"effect", effectRequired, effectShould},
	{"typeclass", typeclassRequired, typeclassShould},
	{"parse", parseRequired, nil},
}

// Verify checks every entry's file, the metadata of the audit events inside
// it, the retained_entries summary and the history archive.
func Verify(index records.Record, opts VerifyOptions) []Issue {
	root := opts.Root
	if root == "" {
		root = "."
	}
	raw, ok := index["entries"].([]any)
	if !ok {
		return []Issue{errorf("index has no entries array")}
	}

	var issues []Issue
	var entries []records.Record
	for _, item := range raw {
		entry, ok := records.AsRecord(item)
		if !ok {
			issues = append(issues, errorf("entries contains a non-object item"))
			continue
		}
		entries = append(entries, entry)
		issues = append(issues, verifyEntry(entry, root, opts)...)
	}

	issues = append(issues, compareSummary(Summarize(entries), index["retained_entries"])...)

	if opts.HistoryDir != "" {
		dir := opts.HistoryDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		issues = append(issues, verifyHistory(dir)...)
	}
	return issues
}

func verifyEntry(entry records.Record, root string, opts VerifyOptions) []Issue {
	pathValue, ok := records.NonEmptyString(entry["path"])
	if !ok {
		return []Issue{errorf("entry has an invalid path: %v", entry["path"])}
	}
	path := pathValue
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return []Issue{errorf("audit file does not exist: %s", path)}
	}

	var issues []Issue
	if recorded, ok := ParseInt(entry["size_bytes"]); ok && recorded != info.Size() {
		issues = append(issues, warnf("size_bytes does not match the file: %s (recorded=%d actual=%d)", path, recorded, info.Size()))
	}
	return append(issues, VerifyAuditFile(path, opts.MaxEvents, opts.Strict)...)
}

// VerifyAuditFile checks the metadata of up to limit events in path.
func VerifyAuditFile(path string, limit int, strict bool) []Issue {
	events, err := loadEvents(path)
	if err != nil {
		return []Issue{errorf("%v", err)}
	}
	if len(events) == 0 {
		return []Issue{warnf("audit file has no entries: %s", path)}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	var issues []Issue
	for i, event := range events {
		metadata, ok := records.AsRecord(event["metadata"])
		if !ok {
			issues = append(issues, errorf("%s:%d metadata is not an object", path, i))
			continue
		}
		for _, issue := range CheckMetadata(metadata, strict) {
			issue.Message = fmt.Sprintf("%s:%d %s", path, i, issue.Message)
			issues = append(issues, issue)
		}
	}
	return issues
}

func loadEvents(path string) ([]records.Record, error) {
	if !strings.HasSuffix(path, ".gz") {
		return records.LoadFile(path)
	}
	data, err := readGzip(path)
	if err != nil {
		return nil, err
	}
	return records.DecodeRecords(path, data)
}

func readGzip(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// CheckMetadata applies the common keys and every key group whose keys appear
// in metadata. Metadata may mix flat dotted keys and nested objects.
func CheckMetadata(metadata records.Record, strict bool) []Issue {
	expanded := expand(metadata)
	lookup := func(key string) any {
		if v, ok := metadata[key]; ok {
			return v
		}
		var cur any = expanded
		for part := range strings.SplitSeq(key, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			if cur, ok = m[part]; !ok {
				return nil
			}
		}
		return cur
	}
	missing := func(keys []string) []string {
		var out []string
		for _, k := range keys {
			if isEmpty(lookup(k)) {
				out = append(out, k)
			}
		}
		sort.Strings(out)
		return out
	}

	var issues []Issue
	if m := missing(commonRequired); len(m) > 0 {
		issues = append(issues, errorf("required metadata missing: %s", strings.Join(m, ", ")))
	}
	shouldSeverity := SeverityWarning
	if strict {
		shouldSeverity = SeverityError
	}
	for _, g := range keyGroups {
		present := slices.ContainsFunc(slices.Concat(g.required, g.should), func(k string) bool {
			return lookup(k) != nil
		})
		if !present {
			continue
		}
		if m := missing(g.required); len(m) > 0 {
			issues = append(issues, errorf("%s metadata missing required keys: %s", g.name, strings.Join(m, ", ")))
		}
		if m := missing(g.should); len(m) > 0 {
			issues = append(issues, Issue{
				Severity: shouldSeverity,
				Message:  fmt.Sprintf("%s metadata missing recommended keys: %s", g.name, strings.Join(m, ", ")),
			})
		}
	}
	return issues
}

// expand turns dotted keys into nested objects. Later keys overwrite earlier
// ones except that two objects landing on the same key are merged.
func expand(metadata records.Record) map[string]any {
	out := make(map[string]any)
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := metadata[key]
		parts := strings.Split(key, ".")
		cur := out
		for i, part := range parts {
			if i == len(parts)-1 {
				existing, eok := cur[part].(map[string]any)
				incoming, iok := value.(map[string]any)
				if eok && iok {
					merged := make(map[string]any, len(existing)+len(incoming))
					for k, v := range existing {
						merged[k] = v
					}
					for k, v := range incoming {
						merged[k] = v
					}
					cur[part] = merged
				} else {
					cur[part] = value
				}
				break
			}
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

func compareSummary(expected []Retained, recordedRaw any) []Issue {
	type key struct{ profile, target string }
	type counts struct {
		count int64
		size  int64
	}
	exp := make(map[key]counts)
	for _, r := range expected {
		exp[key{r.Profile, r.Target}] = counts{int64(r.Count), r.SizeBytes}
	}
	rec := make(map[key]counts)
	if list, ok := recordedRaw.([]any); ok {
		for _, item := range list {
			m, ok := records.AsRecord(item)
			if !ok {
				continue
			}
			k := key{DefaultProfile, DefaultTarget}
			if s, ok := records.FirstString(m, "profile"); ok {
				k.profile = s
			}
			if s, ok := records.FirstString(m, "target"); ok {
				k.target = s
			}
			count, _ := ParseInt(m["count"])
			size, _ := ParseInt(m["size_bytes"])
			rec[k] = counts{count, size}
		}
	}

	keys := make([]key, 0, len(exp)+len(rec))
	for k := range exp {
		keys = append(keys, k)
	}
	for k := range rec {
		if _, ok := exp[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].profile != keys[j].profile {
			return keys[i].profile < keys[j].profile
		}
		return keys[i].target < keys[j].target
	})

	var issues []Issue
	for _, k := range keys {
		e, r := exp[k], rec[k]
		if e != r {
			issues = append(issues, errorf("retained_entries mismatch for (%s, %s): expected count=%d size=%d, recorded count=%d size=%d",
				k.profile, k.target, e.count, e.size, r.count, r.size))
		}
	}
	return issues
}

func verifyHistory(dir string) []Issue {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	var issues []Issue
	for _, path := range matches {
		data, err := readGzip(path)
		if err != nil {
			issues = append(issues, errorf("failed to read history file: %v", err))
			continue
		}
		if _, err := records.DecodeRecords(path, data); err != nil {
			issues = append(issues, errorf("history file is not valid JSON: %v", err))
		}
	}
	return issues
}
