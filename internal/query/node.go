package query

import "github.com/roach88/docket/internal/ir"

// M is the literal form of a predicate document.
//
//	query.M{"age": query.M{"$gte": 18}}
type M = map[string]any

// Node is a compiled predicate.
//
// This is a sealed interface - only types in this package implement it, so
// the evaluator and the linter can switch over every node exhaustively.
type Node interface {
	predicateNode()
}

// Op is a comparison operator.
type Op string

const (
	OpLt   Op = "$lt"
	OpGt   Op = "$gt"
	OpLte  Op = "$lte"
	OpGte  Op = "$gte"
	OpIn   Op = "$in"
	OpNin  Op = "$nin"
	OpLike Op = "$like"
	OpEq   Op = "$eq"
	OpNe   Op = "$ne"
)

var comparisonOps = map[Op]bool{
	OpLt: true, OpGt: true, OpLte: true, OpGte: true,
	OpIn: true, OpNin: true, OpLike: true, OpEq: true, OpNe: true,
}

// IsComparison reports whether op is one of the fixed comparison operators.
func IsComparison(op string) bool {
	return comparisonOps[Op(op)]
}

func (op Op) ordering() bool {
	return op == OpLt || op == OpGt || op == OpLte || op == OpGte
}

// Combinator keys.
const (
	KeyOr  = "$or"
	KeyNor = "$nor"
	KeyAnd = "$and"
)

// Func is an ad-hoc predicate called with the value it is matched against.
// Func nodes cannot be serialized.
type Func func(v ir.Value) bool

func (Func) predicateNode() {}

// Cmp applies a comparison operator to the current value.
type Cmp struct {
	Op      Op
	Operand ir.Value
}

func (Cmp) predicateNode() {}

// Or matches when any of its nodes matches the current value.
type Or struct {
	Nodes []Node
}

func (Or) predicateNode() {}

// Nor matches when Or over the same nodes would not.
type Nor struct {
	Nodes []Node
}

func (Nor) predicateNode() {}

// And matches when every node matches the current value. An empty And
// matches everything.
type And struct {
	Nodes []Node
}

func (And) predicateNode() {}

// Lookup descends into field Key of the current value and matches Node
// against it. Missing fields, and fields of non-object values, are Null.
type Lookup struct {
	Key  string
	Node Node
}

func (Lookup) predicateNode() {}
