package query

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/types"
)

// Evaluator matches compiled predicates against values.
// It is stateless apart from the equality strategy and safe for concurrent
// use.
type Evaluator struct {
	equality types.Equality
}

// NewEvaluator returns an evaluator using eq for $eq, $ne, $in and $nin.
func NewEvaluator(eq types.Equality) *Evaluator {
	if eq == "" {
		eq = types.Loose
	}
	return &Evaluator{equality: eq}
}

// Equality returns the evaluator's equality strategy.
func (e *Evaluator) Equality() types.Equality {
	return e.equality
}

// Match reports whether v satisfies n. A nil node matches everything.
func (e *Evaluator) Match(n Node, v ir.Value) bool {
	if v == nil {
		v = ir.Null{}
	}
	switch node := n.(type) {
	case nil:
		return true
	case Func:
		return node(v)
	case Cmp:
		return e.Compare(node.Op, v, node.Operand)
	case Or:
		return e.any(node.Nodes, v)
	case Nor:
		return !e.any(node.Nodes, v)
	case And:
		for _, child := range node.Nodes {
			if !e.Match(child, v) {
				return false
			}
		}
		return true
	case Lookup:
		return e.Match(node.Node, field(v, node.Key))
	default:
		return false
	}
}

// any evaluates every element against the same value.
func (e *Evaluator) any(nodes []Node, v ir.Value) bool {
	for _, child := range nodes {
		if e.Match(child, v) {
			return true
		}
	}
	return false
}

func field(v ir.Value, key string) ir.Value {
	if obj, ok := v.(ir.Object); ok {
		return obj.Get(key)
	}
	return ir.Null{}
}

// Filter returns the records matching n, in input order.
func (e *Evaluator) Filter(n Node, recs []ir.Object) []ir.Object {
	var out []ir.Object
	for _, rec := range recs {
		if e.Match(n, rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Compare applies one comparison operator.
func (e *Evaluator) Compare(op Op, actual, operand ir.Value) bool {
	if operand == nil {
		operand = ir.Null{}
	}
	switch op {
	case OpLt, OpGt, OpLte, OpGte:
		c, ok := order(actual, operand)
		if !ok {
			return false
		}
		switch op {
		case OpLt:
			return c < 0
		case OpGt:
			return c > 0
		case OpLte:
			return c <= 0
		default:
			return c >= 0
		}
	case OpIn:
		return e.in(actual, operand)
	case OpNin:
		return !e.in(actual, operand)
	case OpLike:
		return like(actual, operand)
	case OpEq:
		return e.equal(actual, operand)
	case OpNe:
		return !e.equal(actual, operand)
	default:
		return false
	}
}

// equal is $eq: temporal values compare by instant regardless of mode.
func (e *Evaluator) equal(actual, operand ir.Value) bool {
	at, aTime := actual.(ir.Time)
	ot, oTime := operand.(ir.Time)
	switch {
	case aTime && oTime:
		return at.Same(ot)
	case aTime:
		t, ok := types.TimeOf(operand)
		return ok && at.Equal(t)
	case oTime:
		t, ok := types.TimeOf(actual)
		return ok && ot.Equal(t)
	}
	return e.equality.Equal(actual, operand)
}

func (e *Evaluator) in(actual, operand ir.Value) bool {
	list, ok := operand.(ir.List)
	if !ok {
		list = ir.List{operand}
	}

	if at, ok := actual.(ir.Time); ok {
		for _, elem := range list {
			if t, ok := types.TimeOf(types.Cast(types.Temporal, elem)); ok && at.Equal(t) {
				return true
			}
		}
		return false
	}

	for _, elem := range list {
		if e.equal(actual, elem) {
			return true
		}
	}
	// a list field matches when any of its elements is listed
	if values, ok := actual.(ir.List); ok {
		for _, v := range values {
			for _, elem := range list {
				if e.equal(v, elem) {
					return true
				}
			}
		}
	}
	return false
}

// order compares actual with operand for the ordering operators.
// Numbers compare numerically against numeric operands; temporal values
// compare by instant against anything that casts to temporal; text compares
// its rune length against a number, numeric text, or another text's length.
func order(actual, operand ir.Value) (int, bool) {
	switch a := actual.(type) {
	case ir.Number:
		if !orderable(operand) {
			return 0, false
		}
		b, ok := types.NumberOf(operand)
		if !ok {
			return 0, false
		}
		return cmpFloat(float64(a), b)
	case ir.Time:
		if !orderable(operand) {
			return 0, false
		}
		b, ok := types.TimeOf(operand)
		if !ok {
			return 0, false
		}
		return a.Compare(b), true
	case ir.Text:
		n := float64(utf8.RuneCountInString(string(a)))
		switch b := operand.(type) {
		case ir.Number:
			return cmpFloat(n, float64(b))
		case ir.Text:
			if f, ok := types.NumberOf(b); ok && strings.TrimSpace(string(b)) != "" {
				return cmpFloat(n, f)
			}
			return cmpFloat(n, float64(utf8.RuneCountInString(string(b))))
		}
	}
	return 0, false
}

func orderable(v ir.Value) bool {
	switch v.(type) {
	case ir.Number, ir.Text, ir.Time:
		return true
	default:
		return false
	}
}

func cmpFloat(a, b float64) (int, bool) {
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	case a == b:
		return 0, true
	default:
		return 0, false // NaN
	}
}

// like is a case-insensitive substring test on text.
func like(actual, operand ir.Value) bool {
	s, ok := actual.(ir.Text)
	if !ok {
		return false
	}
	if _, null := operand.(ir.Null); null {
		return false
	}
	sub, ok := types.TextOf(operand)
	if !ok {
		return false
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(string(s)), fold.String(sub))
}
