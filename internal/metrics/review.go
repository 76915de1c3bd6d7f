package metrics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"diagaudit/internal/auditdiff"
	"diagaudit/internal/records"
)

// ReviewFailure describes an unusable review artifact.
type ReviewFailure struct {
	File    string   `json:"file"`
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

// DiffEntry summarizes one audit-diff report.
type DiffEntry struct {
	Path            string    `json:"path"`
	Regressions     int       `json:"regressions"`
	New             int       `json:"new"`
	MetadataChanged int       `json:"metadata_changed"`
	PassRate        DeltaInfo `json:"pass_rate"`
	Base            any       `json:"base"`
	Target          any       `json:"target"`
}

// DeltaInfo is a pass-rate comparison.
type DeltaInfo struct {
	Previous *float64 `json:"previous"`
	Current  *float64 `json:"current"`
	Delta    *float64 `json:"delta"`
}

// DeltaRange summarizes pass-rate deltas over several diffs.
type DeltaRange struct {
	Delta    *float64 `json:"delta"`
	MinDelta *float64 `json:"min_delta"`
	MaxDelta *float64 `json:"max_delta"`
}

// DiffSummary aggregates every audit-diff report.
type DiffSummary struct {
	Regressions      int         `json:"regressions"`
	MetadataChanged  int         `json:"metadata_changed"`
	New              int         `json:"new"`
	PassRate         DeltaRange  `json:"pass_rate"`
	Sources          []string    `json:"sources"`
	Entries          []DiffEntry `json:"entries"`
	TotalRegressions int         `json:"total_regressions"`
}

// CoverageEntry is one query preset's hit ratio.
type CoverageEntry struct {
	Preset  any      `json:"preset"`
	Matched int      `json:"matched"`
	Total   int      `json:"total"`
	Ratio   *float64 `json:"ratio"`
}

// QuerySummary aggregates query coverage reports.
type QuerySummary struct {
	Coverage *float64        `json:"coverage"`
	Matched  int             `json:"matched"`
	Total    int             `json:"total"`
	Entries  []CoverageEntry `json:"entries"`
	Sources  []string        `json:"sources"`
}

// DashboardSummary lists rendered dashboards.
type DashboardSummary struct {
	Generated int      `json:"generated"`
	Sources   []string `json:"sources"`
	Missing   []string `json:"missing"`
}

// ReviewSummary is the audit_review.summary metric.
type ReviewSummary struct {
	Metric         string           `json:"metric"`
	AuditDiff      DiffSummary      `json:"audit_diff"`
	AuditQuery     QuerySummary     `json:"audit_query"`
	AuditDashboard DashboardSummary `json:"audit_dashboard"`
	Failures       []ReviewFailure  `json:"failures"`
}

// CollectReview summarizes review artifacts. Unreadable or malformed files
// become failures in the summary rather than errors.
func CollectReview(diffPaths, coveragePaths, dashboardPaths []string) *ReviewSummary {
	r := &ReviewSummary{
		Metric:         "audit_review.summary",
		AuditDiff:      DiffSummary{Sources: []string{}, Entries: []DiffEntry{}},
		AuditQuery:     QuerySummary{Entries: []CoverageEntry{}, Sources: []string{}},
		AuditDashboard: DashboardSummary{Sources: []string{}, Missing: []string{}},
		Failures:       []ReviewFailure{},
	}
	var deltas []float64
	for _, path := range diffPaths {
		doc, ok := r.load(path)
		if !ok {
			continue
		}
		if errs := auditdiff.Validate(doc); len(errs) > 0 {
			r.Failures = append(r.Failures, ReviewFailure{File: path, Reason: "audit_diff_schema", Details: errs})
		}
		data, _ := records.AsRecord(doc)
		r.AuditDiff.Sources = append(r.AuditDiff.Sources, path)
		entry := DiffEntry{
			Path:            path,
			Regressions:     intAt(data, "diagnostic", "regressions"),
			New:             intAt(data, "diagnostic", "new"),
			MetadataChanged: intAt(data, "metadata", "changed"),
			PassRate: DeltaInfo{
				Previous: floatAt(data, "pass_rate", "previous"),
				Current:  floatAt(data, "pass_rate", "current"),
				Delta:    floatAt(data, "pass_rate", "delta"),
			},
			Base:   valueAt(data, "base", "path"),
			Target: valueAt(data, "target", "path"),
		}
		if entry.PassRate.Delta != nil {
			deltas = append(deltas, *entry.PassRate.Delta)
		}
		r.AuditDiff.Regressions += entry.Regressions
		r.AuditDiff.New += entry.New
		r.AuditDiff.MetadataChanged += entry.MetadataChanged
		r.AuditDiff.Entries = append(r.AuditDiff.Entries, entry)
	}
	if len(deltas) > 0 {
		lo, hi := deltas[0], deltas[0]
		for _, d := range deltas[1:] {
			lo, hi = min(lo, d), max(hi, d)
		}
		r.AuditDiff.PassRate = DeltaRange{Delta: Ptr(deltas[len(deltas)-1]), MinDelta: Ptr(lo), MaxDelta: Ptr(hi)}
	}
	r.AuditDiff.TotalRegressions = r.AuditDiff.Regressions + r.AuditDiff.MetadataChanged

	for _, path := range coveragePaths {
		entries, ok := r.loadCoverage(path)
		if !ok {
			continue
		}
		r.AuditQuery.Sources = append(r.AuditQuery.Sources, path)
		for _, e := range entries {
			ce := CoverageEntry{
				Preset:  firstTruthy(e, "preset", "name", "id", "query"),
				Matched: intOr(intAt(e, "hits"), e, "matched"),
				Total:   intOr(intAt(e, "count"), e, "total"),
			}
			if ce.Total > 0 {
				ce.Ratio = Ptr(float64(ce.Matched) / float64(ce.Total))
			}
			r.AuditQuery.Matched += ce.Matched
			r.AuditQuery.Total += ce.Total
			r.AuditQuery.Entries = append(r.AuditQuery.Entries, ce)
		}
	}
	if r.AuditQuery.Total > 0 {
		r.AuditQuery.Coverage = Ptr(float64(r.AuditQuery.Matched) / float64(r.AuditQuery.Total))
	}

	for _, path := range dashboardPaths {
		r.AuditDashboard.Sources = append(r.AuditDashboard.Sources, path)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			r.AuditDashboard.Generated++
		} else {
			r.AuditDashboard.Missing = append(r.AuditDashboard.Missing, path)
		}
	}
	return r
}

func (r *ReviewSummary) load(path string) (any, bool) {
	doc, err := records.LoadDocument(path)
	if err == nil {
		return doc, true
	}
	reason := fmt.Sprintf("parse_error: %v", err)
	if errors.Is(err, fs.ErrNotExist) {
		reason = "not_found"
	}
	r.Failures = append(r.Failures, ReviewFailure{File: path, Reason: reason})
	return nil, false
}

func (r *ReviewSummary) loadCoverage(path string) ([]records.Record, bool) {
	doc, ok := r.load(path)
	if !ok {
		return nil, false
	}
	objects := func(list []any) []records.Record {
		var out []records.Record
		for _, item := range list {
			if rec, ok := records.AsRecord(item); ok {
				out = append(out, rec)
			}
		}
		return out
	}
	switch v := doc.(type) {
	case []any:
		entries := objects(v)
		return entries, len(entries) > 0
	case map[string]any:
		if list, ok := v["coverage"].([]any); ok {
			if entries := objects(list); len(entries) > 0 {
				return entries, true
			}
		}
		return []records.Record{v}, true
	}
	r.Failures = append(r.Failures, ReviewFailure{File: path, Reason: "unsupported_format"})
	return nil, false
}

func valueAt(data records.Record, keys ...string) any {
	var cur any = data
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

func intAt(data records.Record, keys ...string) int {
	return intOr(0, data, keys...)
}

func intOr(def int, data records.Record, keys ...string) int {
	f, ok := records.Float(valueAt(data, keys...))
	if !ok {
		return def
	}
	return int(f)
}

func floatAt(data records.Record, keys ...string) *float64 {
	f, ok := records.Float(valueAt(data, keys...))
	if !ok {
		return nil
	}
	return &f
}

func firstTruthy(data records.Record, keys ...string) any {
	for _, k := range keys {
		if v := data[k]; v != nil && !records.IsBlank(v) && v != false {
			return v
		}
	}
	return "<unknown>"
}
