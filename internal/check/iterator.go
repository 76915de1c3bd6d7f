package check

import (
	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

// IteratorCode selects the iterator-stage category.
const IteratorCode = "typeclass.iterator.stage_mismatch"

// Iterator checks iterator stage mismatches for a full effect, typeclass and
// parse audit bundle.
type Iterator struct{}

func (Iterator) Name() string { return "iterator.stage.audit_pass_rate" }

func (Iterator) Select(d records.Record) bool { return records.HasCode(d, IteratorCode) }

func (Iterator) Inspect(d records.Record) Finding {
	fields := schema.MustLookup(schema.Iterator).Fields
	missing := resolve.Missing(records.Sub(d, "audit"), fields)
	missing = append(missing, iteratorExtensions(records.Sub(d, "extensions"))...)
	return Finding{Missing: missing}
}

func (Iterator) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.Iterator).RequiredKeys()
}

func iteratorExtensions(ext records.Record) []string {
	effects := records.Sub(ext, "effects")
	if effects == nil {
		return []string{"extensions.effects"}
	}
	var missing []string
	missing = append(missing, requireKeys(records.Sub(effects, "stage"), "extensions.effects.stage", schema.EffectStageKeys)...)
	missing = append(missing, requireKeys(records.Sub(effects, "iterator"), "extensions.effects.iterator", schema.EffectIteratorKeys)...)

	if v := effects["capability"]; v == nil || v == "" {
		missing = append(missing, "extensions.effects.capability")
	}
	for _, key := range schema.EffectExtraKeys {
		if !effectKeyPresent(effects, key) {
			missing = append(missing, "extensions.effects."+key.Name)
		}
	}

	if tc := records.Sub(ext, "typeclass"); tc == nil {
		missing = append(missing, "extensions.typeclass")
	} else {
		missing = append(missing, typeclassExtension(tc, "extensions.typeclass")...)
	}

	parse := records.Sub(ext, "parse")
	if parse == nil {
		return append(missing, "extensions.parse")
	}
	for _, key := range schema.ParseKeys {
		if v := parse[key]; v == nil || v == "" {
			missing = append(missing, "extensions.parse."+key)
		}
	}
	return missing
}

// requireKeys reports keys of obj that are absent, null or "".
func requireKeys(obj records.Record, prefix string, keys []string) []string {
	if obj == nil {
		return []string{prefix}
	}
	var missing []string
	for _, key := range keys {
		if v, ok := obj[key]; !ok || v == nil || v == "" {
			missing = append(missing, prefix+"."+key)
		}
	}
	return missing
}

func effectKeyPresent(effects records.Record, key schema.ExtensionKey) bool {
	aliases := key.Aliases
	if len(aliases) == 0 {
		aliases = []string{key.Name}
	}
	for _, alias := range aliases {
		v, ok := effects[alias]
		if !ok {
			continue
		}
		if !key.AllowEmpty && records.IsBlank(v) {
			continue
		}
		return true
	}
	return false
}
