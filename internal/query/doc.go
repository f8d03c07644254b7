// Package query implements the predicate language used to locate records.
//
// Predicate documents follow the MongoDB shape: field names map to nested
// predicates, "$"-prefixed keys name comparison operators ($lt, $gt, $lte,
// $gte, $in, $nin, $like, $eq, $ne) or combinators ($or, $nor, $and), and a
// bare scalar means equality. Parse compiles a document into a sealed Node
// tree once; an Evaluator then matches the tree against any number of
// records.
//
// Comparison is type-aware:
//   - numbers and temporal values order by value
//   - text orders by its length in runes, not lexicographically
//   - booleans, lists and null never satisfy an ordering operator
//   - temporal values compare by instant under $eq, $ne, $in and $nin
//   - $eq and $ne otherwise use the schema's equality strategy
//
// Every query is a full scan; there is no planner and no index.
package query
