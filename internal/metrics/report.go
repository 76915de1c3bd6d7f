package metrics

import (
	"encoding/json"

	"diagaudit/internal/records"
)

// Metric names of the built-in categories.
const (
	NamePresence   = "diagnostic.audit_presence_rate"
	NameParser     = "parser.expected_summary_presence"
	NameIterator   = "iterator.stage.audit_pass_rate"
	NameTypeclass  = "typeclass.metadata_pass_rate"
	NameBridge     = "ffi_bridge.audit_pass_rate"
	NameDomain     = "diagnostic.domain_consistency"
	NameCapability = "effect.capability_array_consistency"
)

// CIInfo carries externally measured durations.
type CIInfo struct {
	DurationSeconds      *float64  `json:"duration_seconds,omitempty"`
	StageDurationSeconds *float64  `json:"stage_duration_seconds,omitempty"`
	Duration             *Duration `json:"duration,omitempty"`
}

// Duration is the ci.duration bucket.
type Duration struct {
	TotalSeconds *float64 `json:"total_seconds,omitempty"`
	StageSeconds *float64 `json:"stage_seconds,omitempty"`
}

// NewCIInfo returns nil when neither duration is known.
func NewCIInfo(total, stage *float64) *CIInfo {
	if total == nil && stage == nil {
		return nil
	}
	return &CIInfo{
		DurationSeconds:      total,
		StageDurationSeconds: stage,
		Duration:             &Duration{TotalSeconds: total, StageSeconds: stage},
	}
}

// Enforcement is the outcome of the strict gate.
type Enforcement struct {
	RequireSuccess bool     `json:"require_success"`
	Failures       []string `json:"failures,omitempty"`
}

// Report is the combined output of a check run.
type Report struct {
	metrics []Metric

	Presence   *Metric
	Parser     *Metric
	Iterator   *Metric
	Typeclass  *Metric
	Bridge     *Metric
	Domain     *Metric
	Capability *Metric

	Review       *ReviewSummary
	Extra        []records.Record
	ExtraSources []string
	Diagnostics  *SeveritySummary
	CI           *CIInfo
	Enforcement  *Enforcement
}

// Aggregate combines metrics in the given order. Built-in categories are
// also exposed under their own report keys.
func Aggregate(ms ...Metric) *Report {
	r := &Report{metrics: ms}
	for i := range r.metrics {
		m := &r.metrics[i]
		switch m.Name {
		case NamePresence:
			r.Presence = m
		case NameParser:
			r.Parser = m
		case NameIterator:
			r.Iterator = m
		case NameTypeclass:
			r.Typeclass = m
		case NameBridge:
			r.Bridge = m
		case NameDomain:
			r.Domain = m
		case NameCapability:
			r.Capability = m
		}
	}
	return r
}

// AddExtra appends an externally produced metric object.
func (r *Report) AddExtra(path string, m records.Record) {
	r.Extra = append(r.Extra, m)
	r.ExtraSources = append(r.ExtraSources, path)
}

// Metrics returns the aggregated metrics with nesting preserved.
func (r *Report) Metrics() []Metric { return r.metrics }

// Flatten lists every metric followed by its related metrics.
func (r *Report) Flatten() []Metric {
	var out []Metric
	for _, m := range r.metrics {
		out = append(out, m.Flatten()...)
	}
	return out
}

// Primary is the iterator metric, else the first metric.
func (r *Report) Primary() *Metric {
	if r.Iterator != nil {
		return r.Iterator
	}
	if len(r.metrics) > 0 {
		return &r.metrics[0]
	}
	return nil
}

// SchemaVersions is the sorted union over every metric and related metric.
func (r *Report) SchemaVersions() []string {
	var all []string
	for _, m := range r.Flatten() {
		all = append(all, m.SchemaVersions...)
	}
	for _, extra := range r.Extra {
		if list, ok := extra["schema_versions"].([]any); ok {
			for _, v := range list {
				if s, ok := v.(string); ok {
					all = append(all, s)
				}
			}
		}
	}
	return SortedUnion(all)
}

// AuditSources is the sorted union of audit log paths and extra metric files.
func (r *Report) AuditSources() []string {
	var all []string
	for _, m := range r.metrics {
		all = append(all, m.AuditSources...)
	}
	all = append(all, r.ExtraSources...)
	if len(all) == 0 {
		return nil
	}
	return SortedUnion(all)
}

type primaryJSON struct {
	Metric            string    `json:"metric"`
	Total             int       `json:"total"`
	Passed            int       `json:"passed"`
	Failed            int       `json:"failed"`
	PassRate          *float64  `json:"pass_rate"`
	PassFraction      *float64  `json:"pass_fraction"`
	RequiredAuditKeys []string  `json:"required_audit_keys"`
	Sources           []string  `json:"sources"`
	Failures          []Failure `json:"failures"`
}

type reportJSON struct {
	Metrics      []any            `json:"metrics"`
	ExtraMetrics []records.Record `json:"extra_metrics,omitempty"`
	ExtraSources []string         `json:"extra_metrics_sources,omitempty"`
	*primaryJSON
	DiagnosticAudit *Metric          `json:"diagnostic_audit,omitempty"`
	Parser          *Metric          `json:"parser,omitempty"`
	Iterator        *Metric          `json:"iterator,omitempty"`
	Typeclass       *Metric          `json:"typeclass,omitempty"`
	FFIBridge       *Metric          `json:"ffi_bridge,omitempty"`
	Domain          *Metric          `json:"domain,omitempty"`
	Capability      *Metric          `json:"capability,omitempty"`
	AuditReview     *ReviewSummary   `json:"audit_review,omitempty"`
	AuditSources    []string         `json:"audit_sources,omitempty"`
	SchemaVersions  []string         `json:"schema_versions"`
	Diagnostics     *SeveritySummary `json:"diagnostics,omitempty"`
	CI              *CIInfo          `json:"ci,omitempty"`
	Enforcement     *Enforcement     `json:"enforcement,omitempty"`
}

// MarshalJSON renders the report with a stable key order.
func (r *Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Metrics:         []any{},
		ExtraMetrics:    r.Extra,
		ExtraSources:    r.ExtraSources,
		DiagnosticAudit: r.Presence,
		Parser:          r.Parser,
		Iterator:        r.Iterator,
		Typeclass:       r.Typeclass,
		FFIBridge:       r.Bridge,
		Domain:          r.Domain,
		Capability:      r.Capability,
		AuditReview:     r.Review,
		AuditSources:    r.AuditSources(),
		SchemaVersions:  r.SchemaVersions(),
		Diagnostics:     r.Diagnostics,
		CI:              r.CI,
		Enforcement:     r.Enforcement,
	}
	for _, m := range r.Flatten() {
		out.Metrics = append(out.Metrics, m)
	}
	if r.Review != nil {
		out.Metrics = append(out.Metrics, r.Review)
	}
	for _, extra := range r.Extra {
		out.Metrics = append(out.Metrics, extra)
	}
	if p := r.Primary(); p != nil {
		out.primaryJSON = &primaryJSON{
			Metric:            p.Name,
			Total:             p.Total,
			Passed:            p.Passed,
			Failed:            p.Failed,
			PassRate:          p.PassRate,
			PassFraction:      p.PassFraction,
			RequiredAuditKeys: p.RequiredAuditKeys,
			Sources:           p.Sources,
			Failures:          p.Failures,
		}
	}
	return json.Marshal(out)
}
