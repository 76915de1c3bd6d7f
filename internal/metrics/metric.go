package metrics

import (
	"encoding/json"
	"slices"
)

// Failure is one failing diagnostic or audit entry.
type Failure struct {
	File       string   `json:"file"`
	Index      *int     `json:"index"`
	Code       string   `json:"code"`
	Missing    []string `json:"missing"`
	Status     *string  `json:"status,omitempty"`
	Platform   any      `json:"platform,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
	// Bridge makes status and platform always present, null when unknown.
	Bridge bool `json:"-"`
}

func (f Failure) MarshalJSON() ([]byte, error) {
	type plain Failure
	if !f.Bridge {
		return json.Marshal(plain(f))
	}
	return json.Marshal(struct {
		plain
		Status   *string `json:"status"`
		Platform any     `json:"platform"`
	}{plain(f), f.Status, f.Platform})
}

// PlatformTally is the per-platform breakdown of the bridge metric.
type PlatformTally struct {
	Total  int `json:"total"`
	OK     int `json:"ok"`
	Failed int `json:"failed"`
}

// StatusSummary classifies bridge status strings.
type StatusSummary struct {
	Success   int                       `json:"success"`
	Failure   int                       `json:"failure"`
	Platforms map[string]*PlatformTally `json:"platforms"`
}

// TokenStats describes expected-token counts of parser diagnostics.
type TokenStats struct {
	Average float64 `json:"average_expected_tokens"`
	Min     int     `json:"min_expected_tokens"`
	Max     int     `json:"max_expected_tokens"`
}

// Metric is the pass/fail tally of one check category.
//
// PassRate is the strict gate (1.0 only when every item passed) and
// PassFraction the continuous coverage signal. Both are nil when nothing was
// selected.
type Metric struct {
	Name              string    `json:"metric"`
	Total             int       `json:"total"`
	Passed            int       `json:"passed"`
	Failed            int       `json:"failed"`
	PassRate          *float64  `json:"pass_rate"`
	PassFraction      *float64  `json:"pass_fraction"`
	Status            string    `json:"status,omitempty"`
	RequiredAuditKeys []string  `json:"required_audit_keys,omitempty"`
	Sources           []string  `json:"sources"`
	AuditSources      []string  `json:"audit_sources,omitempty"`
	Failures          []Failure `json:"failures"`
	SchemaVersions    []string  `json:"schema_versions"`

	Missing         []string                  `json:"missing,omitempty"`
	Samples         map[string]any            `json:"samples,omitempty"`
	PlatformSummary map[string]*PlatformTally `json:"platform_summary,omitempty"`
	StatusSummary   *StatusSummary            `json:"status_summary,omitempty"`
	*TokenStats

	// Expected-token summary fields, set on parser.expected_tokens_per_error.
	WithExpected  *int     `json:"with_expected,omitempty"`
	AverageTokens *float64 `json:"average_tokens,omitempty"`
	MinTokens     *int     `json:"min_tokens,omitempty"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`

	Related []Metric `json:"related_metrics,omitempty"`

	// Informational metrics are reported but never gated.
	Informational bool `json:"-"`
}

// Rates computes the strict pass rate and the pass fraction.
func Rates(passed, total int) (rate, fraction *float64) {
	if total <= 0 {
		return nil, nil
	}
	f := float64(passed) / float64(total)
	r := 0.0
	if passed == total {
		r = 1.0
	}
	return &r, &f
}

// New fills the counters and rates of a metric.
func New(name string, total, passed int) Metric {
	m := Metric{Name: name, Total: total, Passed: passed, Failed: total - passed}
	m.PassRate, m.PassFraction = Rates(passed, total)
	m.Failures = []Failure{}
	m.SchemaVersions = []string{}
	m.Sources = []string{}
	return m
}

// Gated reports whether Enforce considers m.
func (m Metric) Gated() bool { return !m.Informational }

// Flatten returns m followed by its related metrics, depth first.
func (m Metric) Flatten() []Metric {
	out := []Metric{m}
	for _, r := range m.Related {
		out = append(out, r.Flatten()...)
	}
	return out
}

// AllSchemaVersions is the sorted union over m and its related metrics.
func (m Metric) AllSchemaVersions() []string {
	var out []string
	for _, x := range m.Flatten() {
		out = append(out, x.SchemaVersions...)
	}
	return SortedUnion(out)
}

// SortedUnion sorts and de-duplicates values.
func SortedUnion(values ...[]string) []string {
	var all []string
	for _, v := range values {
		all = append(all, v...)
	}
	slices.Sort(all)
	all = slices.Compact(all)
	if all == nil {
		return []string{}
	}
	return all
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
