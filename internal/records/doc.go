// Package records turns raw diagnostic and audit payloads into a uniform
// record shape.
//
// # Encodings
//
// Three physical encodings are accepted and auto-detected:
//
//   - a single JSON object, which becomes a one-element sequence;
//   - a JSON array, from which only object elements are kept;
//   - JSON-Lines, used when the whole-file parse fails. Every non-blank line
//     must hold a JSON value; non-object values are skipped, malformed lines
//     fail the load with a *ParseError naming the file and line.
//
// Diagnostic collections (`{"diagnostics": [...]}`) are loaded with
// LoadCollection. A collection without a diagnostics array is an input error
// (ErrNoDiagnostics), never an empty result.
//
// # Immutability
//
// Records are plain map[string]any values decoded by encoding/json. Nothing in
// this package or its consumers mutates a loaded record; derived data is
// always freshly constructed.
package records
