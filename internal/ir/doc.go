// Package ir provides the value representation shared by every docket layer.
//
// Records are ir.Object values: string keys mapped to a sealed Value union of
// Null, Text, Number, Bool, Time, List and Object. Stored rows, predicate
// operands and instance projections all use the same representation, so the
// schema, validator and query evaluator never reflect over Go values.
//
// Key design constraints:
//   - ir imports nothing internal
//   - Object iteration goes through SortedKeys for deterministic output
//   - Time values are encoded as RFC 3339 text in JSON
package ir
