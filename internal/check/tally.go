package check

import (
	"slices"

	"diagaudit/internal/metrics"
	"diagaudit/internal/resolve"
)

// Tally accumulates one category's results.
type Tally struct {
	Total    int
	Passed   int
	Failures []metrics.Failure

	sources      []string
	auditSources []string
	schemas      []string

	// bridge extras
	Platforms     map[string]*metrics.PlatformTally
	StatusSuccess int
	StatusFailure int

	// parser extras
	Tokens []int
}

// NewTally returns an empty accumulator.
func NewTally() *Tally {
	return &Tally{Platforms: map[string]*metrics.PlatformTally{}}
}

// AddSource records a diagnostic collection path.
func (t *Tally) AddSource(path string) { t.sources = append(t.sources, path) }

// AddAuditSource records an audit log path.
func (t *Tally) AddAuditSource(path string) { t.auditSources = append(t.auditSources, path) }

// AddSchemaVersion records an observed schema version.
func (t *Tally) AddSchemaVersion(v string) {
	if v != "" {
		t.schemas = append(t.schemas, v)
	}
}

// Observe counts one inspected item and reports whether it passed.
func (t *Tally) Observe(file string, index *int, code string, f Finding) bool {
	t.Total++
	t.AddSchemaVersion(f.SchemaVersion)
	if f.Tokens > 0 {
		t.Tokens = append(t.Tokens, f.Tokens)
	}
	var platform *metrics.PlatformTally
	if f.Bridge != nil {
		t.tallyStatus(f.Bridge.Status)
		platform = t.platform(platformKey(f.Bridge.Platform))
		platform.Total++
	}
	if f.Passed() {
		t.Passed++
		if platform != nil {
			platform.OK++
		}
		return true
	}
	if platform != nil {
		platform.Failed++
	}
	if code == "" {
		code = "unknown"
	}
	failure := metrics.Failure{
		File:       file,
		Index:      index,
		Code:       code,
		Missing:    resolve.Unique(f.Missing),
		Mismatches: resolve.Unique(f.Mismatches),
	}
	if failure.Missing == nil {
		failure.Missing = []string{}
	}
	if f.Bridge != nil {
		failure.Bridge = true
		failure.Status = f.Bridge.Status
		failure.Platform = f.Bridge.Platform
	}
	t.Failures = append(t.Failures, failure)
	return false
}

// Fail records a synthetic bridge failure that is not tied to one entry, such
// as an empty audit log. Its status and platform serialize as null.
func (t *Tally) Fail(file, code string, missing []string, platform string) {
	t.Total++
	if platform != "" {
		p := t.platform(platform)
		p.Total++
		p.Failed++
	}
	t.Failures = append(t.Failures, metrics.Failure{
		File:    file,
		Code:    code,
		Missing: missing,
		Bridge:  true,
	})
}

func (t *Tally) platform(key string) *metrics.PlatformTally {
	p, ok := t.Platforms[key]
	if !ok {
		p = &metrics.PlatformTally{}
		t.Platforms[key] = p
	}
	return p
}

func (t *Tally) tallyStatus(status *string) {
	if status == nil {
		return
	}
	switch s := lower(*status); {
	case successStatus(s):
		t.StatusSuccess++
	case s != "":
		t.StatusFailure++
	}
}

// Metric converts the tally into a metric.
func (t *Tally) Metric(name string) metrics.Metric {
	m := metrics.New(name, t.Total, t.Passed)
	if t.Failures != nil {
		m.Failures = t.Failures
	}
	m.Sources = append(m.Sources, t.sources...)
	if len(t.auditSources) > 0 {
		m.AuditSources = slices.Clone(t.auditSources)
	}
	m.SchemaVersions = metrics.SortedUnion(t.schemas)
	return m
}
