// Package check runs the compliance checkers over diagnostic collections and
// audit logs.
//
// A Checker selects the diagnostics of its category and inspects each one,
// returning a Finding. Run threads a Tally through the scan and turns it into
// a metrics.Metric; nothing is accumulated in package state, so callers may
// run checkers concurrently over the same inputs.
//
// Every selected diagnostic must also carry a non-blank timestamp. Run adds
// that check itself, so individual checkers only describe their own fields.
package check
