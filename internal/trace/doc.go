// Package trace is the structured event log of diagaudit.
//
// Events are spans (begin/end pairs) and points, tagged with a scope:
//
//   - ScopeCommand: one CLI invocation (check, diff, index prune, ...)
//   - ScopeCategory: one check category or diff phase
//   - ScopeFile: one input file
//   - ScopeEntry: one diagnostic or audit entry (failures only)
//
// The level decides how deep events go: phase shows commands and categories,
// detail adds files, debug adds per-entry failures. Output is text or NDJSON,
// streamed to a file or stderr, or kept in a ring buffer that is dumped when
// a command fails.
//
//	diagaudit check --source out.json --trace=- --trace-level=detail
//
// The tracer travels through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Within(ctx, trace.ScopeCategory, "iterator")
//	defer span.End("")
package trace
