package check

import (
	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

// Presence requires the basic audit envelope on every diagnostic.
type Presence struct{}

func (Presence) Name() string { return "diagnostic.audit_presence_rate" }

func (Presence) Select(records.Record) bool { return true }

func (Presence) Inspect(d records.Record) Finding {
	return Finding{Missing: resolve.Missing(records.Sub(d, "audit"), schema.MustLookup(schema.Basic).Fields)}
}

func (Presence) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = append(schema.MustLookup(schema.Basic).RequiredKeys(), "timestamp")
}
