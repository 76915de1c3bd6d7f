package check

import (
	"context"
	"strings"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

const typeclassPrefix = "typeclass."

// Typeclass checks typeclass metadata on diagnostics and typeclass audit
// log entries.
type Typeclass struct{}

func (Typeclass) Name() string { return "typeclass.metadata_pass_rate" }

func (Typeclass) Select(d records.Record) bool { return records.HasCodePrefix(d, typeclassPrefix) }

func (Typeclass) Inspect(d records.Record) Finding {
	missing := typeclassAudit(records.Sub(d, "audit"))
	ext := records.Sub(d, "extensions")
	if tc := records.Sub(ext, "typeclass"); tc == nil {
		missing = append(missing, "extensions.typeclass")
	} else {
		missing = append(missing, typeclassExtension(tc, "extensions.typeclass")...)
	}
	return Finding{Missing: missing}
}

func (Typeclass) InspectLog(log AuditLog, t *Tally) {
	for i, entry := range log.Entries {
		category, ok := typeclassCategory(entry)
		if !ok {
			continue
		}
		f := Finding{Missing: typeclassAudit(records.Sub(entry, "metadata"))}
		t.Observe(log.Path, metrics.Ptr(i), category, f)
	}
}

func (Typeclass) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.Typeclass).RequiredKeys()
}

func typeclassCategory(entry records.Record) (string, bool) {
	category, ok := records.String(entry, "category")
	return category, ok && strings.HasPrefix(category, typeclassPrefix)
}

func typeclassAudit(audit records.Record) []string {
	keys := schema.MustLookup(schema.Typeclass).AuditKeys
	if audit == nil {
		return append([]string(nil), keys...)
	}
	var missing []string
	for _, key := range keys {
		if !hasAuditKey(audit, key) {
			missing = append(missing, key)
		}
	}
	return missing
}

func typeclassExtension(tc records.Record, prefix string) []string {
	var missing []string
	for _, key := range schema.TypeclassScalarKeys {
		v := tc[key]
		if s, isString := v.(string); v == nil || (isString && strings.TrimSpace(s) == "") {
			missing = append(missing, prefix+"."+key)
		}
	}
	for _, key := range schema.TypeclassListKeys {
		if _, ok := tc[key].([]any); !ok {
			missing = append(missing, prefix+"."+key)
		}
	}
	missing = append(missing, requireFields(records.Sub(tc, "dictionary"), prefix+".dictionary", schema.DictionaryFields)...)
	missing = append(missing, requireFields(records.Sub(tc, "graph"), prefix+".graph", schema.GraphFields)...)
	return missing
}

// requireFields only checks key presence; values may be anything.
func requireFields(obj records.Record, prefix string, keys []string) []string {
	if obj == nil {
		return []string{prefix}
	}
	var missing []string
	for _, key := range keys {
		if _, ok := obj[key]; !ok {
			missing = append(missing, prefix+"."+key)
		}
	}
	return missing
}

// Dictionary checks that the resolved typeclass dictionary is recorded in
// both the extension and the audit metadata.
type Dictionary struct{}

func (Dictionary) Name() string { return "typeclass.dictionary_pass_rate" }

func (Dictionary) Select(d records.Record) bool { return records.HasCodePrefix(d, typeclassPrefix) }

func (Dictionary) Inspect(d records.Record) Finding {
	var missing []string
	ext := records.Sub(d, "extensions")
	if tc := records.Sub(ext, "typeclass"); tc == nil {
		missing = append(missing, "extensions.typeclass")
	} else {
		missing = append(missing, dictionaryPayload(records.Sub(tc, "dictionary"), "extensions.typeclass")...)
	}
	missing = append(missing, dictionaryAudit(records.Sub(d, "audit"))...)
	return Finding{Missing: missing}
}

func (Dictionary) InspectLog(log AuditLog, t *Tally) {
	for i, entry := range log.Entries {
		category, ok := typeclassCategory(entry)
		if !ok {
			continue
		}
		meta := records.Sub(entry, "metadata")
		f := Finding{Missing: dictionaryMetadata(meta, "metadata")}
		if len(f.Missing) == 0 {
			f.SchemaVersion, _ = records.NonEmptyString(resolve.Value(meta, "schema.version"))
		}
		t.Observe(log.Path, metrics.Ptr(i), category, f)
	}
}

func (Dictionary) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.TypeclassDictionary).RequiredKeys()
}

// dictionaryKindMissing treats an empty kind or the "none" sentinel as absent.
func dictionaryKindMissing(v any) bool {
	kind, ok := records.NonEmptyString(v)
	return !ok || strings.EqualFold(kind, "none")
}

func reprMissing(v any) bool {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return records.IsBlank(v)
}

func dictionaryPayload(dict records.Record, prefix string) []string {
	if dict == nil {
		return []string{prefix + ".dictionary"}
	}
	var missing []string
	if dictionaryKindMissing(dict["kind"]) {
		missing = append(missing, prefix+".dictionary.kind")
	}
	if _, ok := records.NonEmptyString(dict["identifier"]); !ok {
		missing = append(missing, prefix+".dictionary.identifier")
	}
	if reprMissing(dict["repr"]) {
		missing = append(missing, prefix+".dictionary.repr")
	}
	return missing
}

func dictionaryMetadata(meta records.Record, prefix string) []string {
	if meta == nil {
		return []string{prefix + ".typeclass.dictionary"}
	}
	var missing []string
	if dictionaryKindMissing(resolve.Value(meta, "typeclass.dictionary.kind")) {
		missing = append(missing, prefix+".typeclass.dictionary.kind")
	}
	if _, ok := records.NonEmptyString(resolve.Value(meta, "typeclass.dictionary.identifier")); !ok {
		missing = append(missing, prefix+".typeclass.dictionary.identifier")
	}
	if reprMissing(resolve.Value(meta, "typeclass.dictionary.repr")) {
		missing = append(missing, prefix+".typeclass.dictionary.repr")
	}
	return missing
}

// dictionaryAudit passes when either audit.metadata or audit itself carries
// a complete dictionary.
func dictionaryAudit(audit records.Record) []string {
	if audit == nil {
		return []string{"audit.metadata"}
	}
	type container struct {
		prefix string
		data   records.Record
	}
	var containers []container
	if meta := records.Sub(audit, "metadata"); meta != nil {
		containers = append(containers, container{"audit.metadata", meta})
	}
	containers = append(containers, container{"audit", audit})
	var all []string
	for _, c := range containers {
		issues := dictionaryMetadata(c.data, c.prefix)
		if len(issues) == 0 {
			return nil
		}
		all = append(all, issues...)
	}
	return resolve.Unique(all)
}

// RunTypeclass runs the metadata check with the dictionary check attached as
// a related metric.
func RunTypeclass(ctx context.Context, in Input) metrics.Metric {
	m := Run(ctx, Typeclass{}, in)
	dict := Run(ctx, Dictionary{}, in)
	m.Related = append(m.Related, dict)
	if len(m.AuditSources) > 0 || len(dict.AuditSources) > 0 {
		m.AuditSources = metrics.SortedUnion(m.AuditSources, dict.AuditSources)
	}
	m.SchemaVersions = metrics.SortedUnion(m.SchemaVersions, dict.SchemaVersions)
	return m
}
