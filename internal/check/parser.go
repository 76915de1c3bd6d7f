package check

import (
	"context"
	"slices"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

// Parser requires parser diagnostics to list the expected alternatives.
type Parser struct{}

func (Parser) Name() string { return "parser.expected_summary_presence" }

func (Parser) Select(d records.Record) bool { return IsParser(d) }

// IsParser reports whether d belongs to the parser domain or namespace.
func IsParser(d records.Record) bool {
	if domain, ok := records.String(d, "domain"); ok && lower(domain) == "parser" {
		return true
	}
	return records.HasCodePrefix(d, "parser.")
}

func (Parser) Inspect(d records.Record) Finding {
	expected := records.Sub(d, "expected")
	if expected == nil {
		return Finding{Missing: []string{"expected"}}
	}
	alts, ok := expected["alternatives"].([]any)
	if !ok || len(alts) == 0 {
		return Finding{Missing: []string{"expected.alternatives"}}
	}
	return Finding{Tokens: len(alts)}
}

func (Parser) Decorate(m *metrics.Metric, t *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.Parser).AuditKeys
	m.Status = "error"
	if m.PassRate != nil && *m.PassRate == 1.0 {
		m.Status = "success"
	}
	stats := tokenStats(t.Tokens)
	m.TokenStats = &stats

	related := metrics.New("parser.expected_tokens_per_error", m.Total, m.Passed)
	related.PassRate, related.PassFraction = nil, nil
	related.Informational = true
	related.Sources = m.Sources
	related.WithExpected = metrics.Ptr(m.Passed)
	related.AverageTokens = metrics.Ptr(stats.Average)
	related.MinTokens = metrics.Ptr(stats.Min)
	related.MaxTokens = metrics.Ptr(stats.Max)
	switch {
	case m.Passed == 0:
		related.Status = "error"
	case stats.Average <= 0:
		related.Status = "warning"
	default:
		related.Status = "success"
	}
	m.Related = append(m.Related, related)
}

func tokenStats(counts []int) metrics.TokenStats {
	if len(counts) == 0 {
		return metrics.TokenStats{}
	}
	sum := 0
	for _, c := range counts {
		sum += c
	}
	return metrics.TokenStats{
		Average: float64(sum) / float64(len(counts)),
		Min:     slices.Min(counts),
		Max:     slices.Max(counts),
	}
}

// RunParser runs the parser check and attaches the runconfig coverage
// metrics as related metrics.
func RunParser(ctx context.Context, in Input) metrics.Metric {
	m := Run(ctx, Parser{}, in)
	m.Related = append(m.Related, Runconfig(in)...)
	return m
}

type coverage struct {
	keys    []string
	seen    map[string]bool
	samples map[string]any
}

func newCoverage(keys []string) *coverage {
	return &coverage{keys: keys, seen: map[string]bool{}, samples: map[string]any{}}
}

// mark records keys present in container. With skipNull a null value does
// not count.
func (c *coverage) mark(container records.Record, skipNull bool) {
	if container == nil {
		return
	}
	for _, key := range c.keys {
		if c.seen[key] {
			continue
		}
		if v, ok := container[key]; ok && !(skipNull && v == nil) {
			c.record(key, v)
		}
	}
}

func (c *coverage) markPath(container records.Record, prefix string, skipNull bool) {
	if container == nil {
		return
	}
	for _, key := range c.keys {
		if c.seen[key] {
			continue
		}
		if v, ok := resolve.Lookup(container, prefix+key); ok && !(skipNull && v == nil) {
			c.record(key, v)
		}
	}
}

func (c *coverage) record(key string, v any) {
	c.seen[key] = true
	if v != nil {
		c.samples[key] = v
	}
}

func (c *coverage) metric(name string, sources []string) metrics.Metric {
	covered := 0
	var missing []string
	for _, key := range c.keys {
		if c.seen[key] {
			covered++
		} else {
			missing = append(missing, key)
		}
	}
	m := metrics.New(name, len(c.keys), covered)
	slices.Sort(missing)
	m.Missing = missing
	m.Sources = append(m.Sources, sources...)
	m.Status = "error"
	if m.PassRate != nil && *m.PassRate == 1.0 {
		m.Status = "success"
	}
	if len(c.samples) > 0 {
		m.Samples = c.samples
	}
	return m
}

// Runconfig measures how many parser run-config switches and extensions are
// observed anywhere in the inputs.
func Runconfig(in Input) []metrics.Metric {
	switches := newCoverage(schema.RunconfigSwitches)
	exts := newCoverage(schema.RunconfigExtensions)
	for _, col := range in.Collections {
		if rc := records.Sub(col.Root, "run_config"); rc != nil {
			switches.mark(records.Sub(rc, "switches"), false)
			exts.mark(records.Sub(rc, "extensions"), true)
		}
		for _, d := range col.Diagnostics {
			if meta := records.Sub(d, "audit_metadata"); meta != nil {
				switches.markPath(meta, "parser.runconfig.", false)
				exts.markPath(meta, "parser.runconfig.extensions.", true)
			}
			if rc := records.Sub(records.Sub(d, "extensions"), "runconfig"); rc != nil {
				switches.mark(rc, false)
				exts.mark(records.Sub(rc, "extensions"), true)
			}
		}
	}
	sources := in.Sources()
	return []metrics.Metric{
		switches.metric("parser.runconfig_switch_coverage", sources),
		exts.metric("parser.runconfig_extension_pass_rate", sources),
	}
}
