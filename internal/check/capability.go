package check

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

// capabilityLocation is one place where producers duplicate the capability
// arrays. Keys are read from the container returned by pick, prefixed.
type capabilityLocation struct {
	name   string
	pick   func(audit, ext records.Record) records.Record
	prefix string
}

func extSub(path ...string) func(audit, ext records.Record) records.Record {
	return func(_, ext records.Record) records.Record {
		cur := ext
		for _, p := range path {
			cur = records.Sub(cur, p)
		}
		return cur
	}
}

func auditMeta(audit, _ records.Record) records.Record { return records.Sub(audit, "metadata") }
func auditRoot(audit, _ records.Record) records.Record { return audit }

// Order matters: the first location holding a field defines the expectation.
var capabilityLocations = []capabilityLocation{
	{name: "extensions.effects.stage", pick: extSub("effects", "stage")},
	{name: "extensions.bridge.stage", pick: extSub("bridge", "stage")},
	{name: "extensions.capability", pick: extSub("capability")},
	{name: "extensions.effect.stage", pick: extSub(), prefix: "effect.stage."},
	{name: "audit.metadata.effect", pick: auditMeta, prefix: "effect."},
	{name: "audit.metadata.effect.stage", pick: auditMeta, prefix: "effect.stage."},
	{name: "audit.effect", pick: auditRoot, prefix: "effect."},
	{name: "audit.effect.stage", pick: auditRoot, prefix: "effect.stage."},
}

// Capability requires the capability arrays to be identical in every
// location that carries them.
type Capability struct{}

func (Capability) Name() string { return "effect.capability_array_consistency" }

func (Capability) Select(d records.Record) bool {
	ext := records.Sub(d, "extensions")
	if ext == nil {
		return false
	}
	if records.Sub(ext, "effects") != nil || records.Sub(ext, "capability") != nil {
		return true
	}
	for key := range ext {
		if strings.HasSuffix(key, "."+schema.RequiredCapabilities) {
			return true
		}
	}
	return false
}

func (Capability) Inspect(d records.Record) Finding {
	audit := records.Sub(d, "audit")
	ext := records.Sub(d, "extensions")
	var f Finding
	checkField(&f, audit, ext, schema.RequiredCapabilities, normalizeRequired)
	checkField(&f, audit, ext, schema.ActualCapabilities, normalizeActual)
	return f
}

func (Capability) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.Capability).AuditKeys
}

// checkField compares field across capabilityLocations. A location holding a
// non-list value is reported as missing under its own name; null counts as
// absent.
func checkField(f *Finding, audit, ext records.Record, field string, normalize func(any) []string) {
	var expected []string
	held := false
	for _, loc := range capabilityLocations {
		container := loc.pick(audit, ext)
		spec := resolve.Field(field, loc.prefix+field).Empty().Null().Shaped(resolve.List)
		res := resolve.Resolve([]records.Record{container}, spec)
		switch {
		case res.Kind == resolve.Malformed:
			f.Missing = append(f.Missing, loc.name+"."+field)
			continue
		case res.Kind != resolve.Found || res.Value == nil:
			continue
		}
		got := normalize(res.Value)
		if !held {
			expected, held = got, true
			continue
		}
		if !slices.Equal(expected, got) {
			f.Mismatches = append(f.Mismatches, "mismatch:"+loc.name+"."+field)
		}
	}
	if !held {
		f.Missing = append(f.Missing, field)
	}
}

func normalizeCapability(v any) (string, bool) {
	s, ok := records.NonEmptyString(v)
	if !ok {
		return "", false
	}
	return norm.NFC.String(s), true
}

// normalizeRequired keeps trimmed, NFC-normalized, non-empty strings in order.
func normalizeRequired(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := normalizeCapability(item); ok {
			out = append(out, s)
		}
	}
	return out
}

// normalizeActual renders each {capability, stage} object as "capability@stage".
func normalizeActual(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := records.AsRecord(item)
		if !ok {
			continue
		}
		capability, ok := normalizeCapability(obj["capability"])
		if !ok {
			continue
		}
		stage, _ := normalizeCapability(obj["stage"])
		out = append(out, capability+"@"+stage)
	}
	return out
}
