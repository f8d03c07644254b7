package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docket/internal/ir"
)

var (
	// ErrUnknownOperator reports a "$" key that is neither a comparison
	// operator nor a combinator.
	ErrUnknownOperator = errors.New("unknown query operator")

	// ErrInvalidPredicate reports a document that cannot be compiled.
	ErrInvalidPredicate = errors.New("invalid predicate")
)

// Parse compiles a predicate document.
//
// Accepted shapes: a Node (returned as is), a Func or func(ir.Value) bool,
// string-keyed maps and ir.Object (field lookups, operators, combinators),
// slices and ir.List (implicit $and), and scalars (implicit $eq).
// Parse(nil) returns a nil Node, which callers treat as "no query".
func Parse(doc any) (Node, error) {
	switch d := doc.(type) {
	case nil:
		return nil, nil
	case Node:
		return d, nil
	case func(ir.Value) bool:
		if d == nil {
			return nil, fmt.Errorf("%w: nil function", ErrInvalidPredicate)
		}
		return Func(d), nil
	case map[string]any:
		return parseMapping(d)
	case ir.Object:
		return parseMapping(objectEntries(d))
	case []any:
		return parseList(d)
	case ir.List:
		return parseList(listEntries(d))
	case []map[string]any:
		entries := make([]any, len(d))
		for i, m := range d {
			entries[i] = m
		}
		return parseList(entries)
	}

	v, err := ir.FromAny(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	switch v.(type) {
	case ir.Object, ir.List:
		return Parse(v)
	}
	return Cmp{Op: OpEq, Operand: v}, nil
}

// ParseJSON decodes a JSON predicate document and compiles it.
func ParseJSON(data []byte) (Node, error) {
	doc, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	if _, null := doc.(ir.Null); null {
		return nil, nil
	}
	return Parse(doc)
}

// MustParse is Parse for literal documents in code and tests.
func MustParse(doc any) Node {
	n, err := Parse(doc)
	if err != nil {
		panic(err)
	}
	return n
}

func objectEntries(obj ir.Object) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

func listEntries(l ir.List) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v
	}
	return out
}

func parseList(entries []any) (Node, error) {
	nodes := make([]Node, 0, len(entries))
	for i, e := range entries {
		n, err := Parse(e)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return And{Nodes: nodes}, nil
}

// parseMapping compiles one mapping level. A mapping holding exactly one
// comparison operator is that comparison; anything else is a conjunction
// of its keys, visited in sorted order so evaluation is deterministic.
func parseMapping(m map[string]any) (Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, ir.CompareKeys)

	parts := make([]Node, 0, len(keys))
	for _, k := range keys {
		n, err := parseEntry(k, m[k])
		if err != nil {
			return nil, err
		}
		parts = append(parts, n)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return And{Nodes: parts}, nil
}

func parseEntry(key string, val any) (Node, error) {
	switch {
	case IsComparison(key):
		return parseComparison(Op(key), val)
	case key == KeyOr, key == KeyNor, key == KeyAnd:
		return parseCombinator(key, val)
	case strings.HasPrefix(key, "$"):
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, key)
	}

	n, err := Parse(val)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if n == nil {
		// {field: nil} asks for an absent or null field
		n = Cmp{Op: OpEq, Operand: ir.Null{}}
	}
	return Lookup{Key: key, Node: n}, nil
}

func parseComparison(op Op, val any) (Node, error) {
	if _, isFunc := val.(func(ir.Value) bool); isFunc {
		return nil, fmt.Errorf("%w: %s operand cannot be a function", ErrInvalidPredicate, op)
	}
	operand, err := ir.FromAny(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %s operand: %v", ErrInvalidPredicate, op, err)
	}
	if op == OpIn || op == OpNin {
		if _, ok := operand.(ir.List); !ok {
			operand = ir.List{operand}
		}
	}
	return Cmp{Op: op, Operand: operand}, nil
}

func parseCombinator(key string, val any) (Node, error) {
	var entries []any
	switch v := val.(type) {
	case []any:
		entries = v
	case ir.List:
		entries = listEntries(v)
	case []map[string]any:
		for _, m := range v {
			entries = append(entries, m)
		}
	default:
		return nil, fmt.Errorf("%w: %s expects a list, got %T", ErrInvalidPredicate, key, val)
	}

	list, err := parseList(entries)
	if err != nil {
		return nil, fmt.Errorf("%s%w", key, err)
	}
	nodes := list.(And).Nodes

	switch key {
	case KeyOr:
		return Or{Nodes: nodes}, nil
	case KeyNor:
		return Nor{Nodes: nodes}, nil
	default:
		return And{Nodes: nodes}, nil
	}
}
