// Package metrics turns per-category tallies into the combined audit report.
//
// A Metric carries two rates on purpose. PassRate is the strict CI gate: it
// is 1.0 only when every selected item passed, 0.0 otherwise and nil when the
// category matched nothing. PassFraction is passed/total and exists so
// dashboards can show progress. Enforce only ever looks at PassRate.
//
// Related metrics stay nested under their parent in the per-category keys of
// the report and are flattened into the top-level "metrics" list.
package metrics
