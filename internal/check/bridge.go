package check

import (
	"strings"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
	"diagaudit/internal/schema"
)

// Bridge checks ffi bridge contracts on diagnostics and cross-references the
// bridge entries of standalone audit logs. Audit-log entries are part of the
// same tally, so the strict gate covers them too.
type Bridge struct{}

func (Bridge) Name() string { return "ffi_bridge.audit_pass_rate" }

func (Bridge) Select(d records.Record) bool {
	return records.HasCodePrefix(d, schema.BridgePrefix)
}

func (Bridge) Inspect(d records.Record) Finding {
	audit := records.Sub(d, "audit")
	ext := records.Sub(d, "extensions")
	return Finding{
		Missing: bridgeMissing(audit, ext),
		Bridge:  bridgeInfo(audit, ext),
	}
}

func (Bridge) InspectLog(log AuditLog, t *Tally) {
	if len(log.Entries) == 0 {
		t.Fail(log.Path, "ffi.audit.empty", []string{"audit_entries"}, "<missing>")
		return
	}
	valid := 0
	for i, entry := range log.Entries {
		category, hasCategory := records.String(entry, "category")
		if hasCategory && !strings.HasPrefix(category, "ffi.bridge") {
			continue
		}
		audit := records.Sub(entry, "metadata")
		if audit == nil {
			audit = entry
		}
		ext := records.Sub(entry, "extensions")
		code := "ffi.audit"
		if hasCategory {
			code = category
		}
		valid++
		t.Observe(log.Path, metrics.Ptr(i), code, Finding{
			Missing: bridgeMissing(audit, ext),
			Bridge:  bridgeInfo(audit, ext),
		})
	}
	if valid == 0 {
		t.Fail(log.Path, "ffi.audit.missing_bridge", []string{"bridge"}, "<missing>")
	}
}

func (Bridge) Decorate(m *metrics.Metric, t *Tally) {
	m.RequiredAuditKeys = schema.MustLookup(schema.Bridge).AuditKeys
	m.PlatformSummary = t.Platforms
	m.StatusSummary = &metrics.StatusSummary{
		Success:   t.StatusSuccess,
		Failure:   t.StatusFailure,
		Platforms: t.Platforms,
	}
}

func bridgeMissing(audit, ext records.Record) []string {
	category := schema.MustLookup(schema.Bridge)
	var missing []string
	if audit == nil {
		missing = append(missing, "audit")
		missing = append(missing, category.AuditKeys...)
	} else {
		for _, key := range category.AuditKeys {
			if !hasAuditKey(audit, key) {
				missing = append(missing, key)
			}
		}
	}
	for _, key := range category.ExtensionKeys {
		if !resolve.HasPath(ext, key) {
			missing = append(missing, "extensions."+key)
		}
	}
	return missing
}
