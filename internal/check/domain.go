package check

import (
	"strings"

	"diagaudit/internal/metrics"
	"diagaudit/internal/records"
	"diagaudit/internal/resolve"
)

// namespaceDomains maps the first segment of a code to the domain its
// diagnostics must report.
var namespaceDomains = map[string]string{
	"parser":    "parser",
	"typeclass": "type",
	"effects":   "effect",
	"effect":    "effect",
	"ffi":       "runtime",
	"config":    "config",
}

// Domain checks that a diagnostic's domain agrees with its code namespace
// and with the domain recorded in the audit metadata.
type Domain struct{}

func (Domain) Name() string { return "diagnostic.domain_consistency" }

func (Domain) Select(d records.Record) bool {
	_, ok := records.NonEmptyString(d["domain"])
	return ok
}

func (Domain) Inspect(d records.Record) Finding {
	domain, _ := records.NonEmptyString(d["domain"])
	domain = strings.ToLower(domain)
	var f Finding
	if code, ok := records.PrimaryCode(d); ok {
		if want, ok := ExpectedDomain(code); ok && want != domain {
			f.Mismatches = append(f.Mismatches, "domain")
		}
	}
	meta := records.Sub(records.Sub(d, "audit"), "metadata")
	if v, ok := resolve.Lookup(meta, "diagnostic.domain"); ok {
		recorded, isString := records.NonEmptyString(v)
		if !isString || strings.ToLower(recorded) != domain {
			f.Mismatches = append(f.Mismatches, "audit.metadata.diagnostic.domain")
		}
	}
	return f
}

func (Domain) Decorate(m *metrics.Metric, _ *Tally) {
	m.RequiredAuditKeys = []string{"domain", "audit.metadata.diagnostic.domain"}
}

// ExpectedDomain returns the domain implied by code's namespace. Unknown
// namespaces are unconstrained.
func ExpectedDomain(code string) (string, bool) {
	ns, _, _ := strings.Cut(code, ".")
	want, ok := namespaceDomains[ns]
	return want, ok
}
