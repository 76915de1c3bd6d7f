package check

import (
	"context"
	"strconv"
	"strings"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/trace"
)

// Checker is one compliance category.
type Checker interface {
	Name() string
	Select(d records.Record) bool
	Inspect(d records.Record) Finding
}

// LogChecker is implemented by checkers that also scan standalone audit logs.
type LogChecker interface {
	InspectLog(log AuditLog, t *Tally)
}

// Decorator lets a checker add category extras to its metric.
type Decorator interface {
	Decorate(m *metrics.Metric, t *Tally)
}

// Finding is the outcome of inspecting one diagnostic.
type Finding struct {
	Missing    []string
	Mismatches []string
	// Code overrides the primary code in the failure entry.
	Code string
	// SchemaVersion overrides the diagnostic's own schema version.
	SchemaVersion string
	Bridge        *BridgeInfo
	// Tokens is the number of expected alternatives of a parser diagnostic.
	Tokens int
}

// BridgeInfo carries the bridge status and platform of one entry.
type BridgeInfo struct {
	Status   *string
	Platform any
}

// Passed reports whether nothing is missing or mismatched.
func (f Finding) Passed() bool {
	return len(f.Missing) == 0 && len(f.Mismatches) == 0
}

// AuditLog is a loaded standalone audit log.
type AuditLog struct {
	Path    string
	Entries []records.Record
}

// Input is everything a check run reads.
type Input struct {
	Collections []*records.Collection
	AuditLogs   []AuditLog
}

// Sources lists the collection paths in input order.
func (in Input) Sources() []string {
	out := make([]string, len(in.Collections))
	for i, c := range in.Collections {
		out[i] = c.Path
	}
	return out
}

// Run scans in with c and returns the category metric.
func Run(ctx context.Context, c Checker, in Input) metrics.Metric {
	ctx, span := trace.Within(ctx, trace.ScopeCategory, c.Name())
	tracer := trace.FromContext(ctx)
	t := NewTally()
	for _, col := range in.Collections {
		t.AddSource(col.Path)
		fileSpan := trace.Begin(tracer, trace.ScopeFile, col.Path, span.ID())
		selected, failed := 0, 0
		for i, d := range col.Diagnostics {
			if !c.Select(d) {
				continue
			}
			selected++
			f := c.Inspect(d)
			if !records.HasTimestamp(d) {
				f.Missing = append(f.Missing, "timestamp")
			}
			if f.SchemaVersion == "" {
				f.SchemaVersion, _ = records.SchemaVersion(d)
			}
			code := f.Code
			if code == "" {
				code, _ = records.PrimaryCode(d)
			}
			if !t.Observe(col.Path, metrics.Ptr(i), code, f) {
				failed++
				traceFailure(tracer, fileSpan.ID(), col.Path, i, t.Failures[len(t.Failures)-1])
			}
		}
		fileSpan.WithExtra("selected", strconv.Itoa(selected)).
			WithExtra("failed", strconv.Itoa(failed)).
			End("")
	}
	if lc, ok := c.(LogChecker); ok {
		for _, log := range in.AuditLogs {
			t.AddAuditSource(log.Path)
			lc.InspectLog(log, t)
		}
	}
	m := t.Metric(c.Name())
	if d, ok := c.(Decorator); ok {
		d.Decorate(&m, t)
	}
	span.WithExtra("total", strconv.Itoa(m.Total)).
		WithExtra("passed", strconv.Itoa(m.Passed)).
		End("")
	return m
}

func traceFailure(tr trace.Tracer, parent uint64, file string, index int, f metrics.Failure) {
	if !tr.Level().ShouldEmit(trace.ScopeEntry) {
		return
	}
	detail := strings.Join(append(append([]string{}, f.Missing...), f.Mismatches...), ", ")
	trace.Point(tr, trace.ScopeEntry, f.Code, detail, parent, map[string]string{
		"file":  file,
		"index": strconv.Itoa(index),
	})
}
