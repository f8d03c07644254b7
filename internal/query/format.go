package query

import (
	"fmt"

	"github.com/roach88/docket/internal/ir"
)

// Document renders a compiled predicate back into document form. The result
// parses to an equivalent tree. Func nodes have no document form.
func Document(n Node) (ir.Value, error) {
	switch node := n.(type) {
	case nil:
		return ir.Null{}, nil
	case Func:
		return nil, fmt.Errorf("%w: function predicate has no document form", ErrInvalidPredicate)
	case Cmp:
		operand := node.Operand
		if operand == nil {
			operand = ir.Null{}
		}
		return ir.Object{string(node.Op): operand}, nil
	case Or:
		return combinatorDocument(KeyOr, node.Nodes)
	case Nor:
		return combinatorDocument(KeyNor, node.Nodes)
	case And:
		return combinatorDocument(KeyAnd, node.Nodes)
	case Lookup:
		inner, err := Document(node.Node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Key, err)
		}
		return ir.Object{node.Key: inner}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node %T", ErrInvalidPredicate, n)
	}
}

func combinatorDocument(key string, nodes []Node) (ir.Value, error) {
	list := make(ir.List, len(nodes))
	for i, child := range nodes {
		doc, err := Document(child)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		list[i] = doc
	}
	return ir.Object{key: list}, nil
}

// String renders n as canonical JSON for logs and traces. Predicates that
// cannot be rendered print as "<func>".
func String(n Node) string {
	doc, err := Document(n)
	if err != nil {
		return "<func>"
	}
	data, err := ir.MarshalCanonical(doc)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
