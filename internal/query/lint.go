package query

import (
	"fmt"

	"github.com/roach88/docket/internal/ir"
)

// LintResult holds the findings of Lint.
type LintResult struct {
	// Portable is true when the predicate can be written out as a document
	// and every clause can match something.
	Portable bool

	// Warnings lists the problems found, in traversal order.
	Warnings []string
}

// Lint walks a compiled predicate looking for clauses that can never match
// and for nodes that cannot be serialized. Predicates with warnings still
// evaluate; Lint is advisory and has no side effects.
func Lint(n Node) LintResult {
	l := &linter{warnings: []string{}}
	l.walk(n, "")
	return LintResult{
		Portable: len(l.warnings) == 0,
		Warnings: l.warnings,
	}
}

type linter struct {
	warnings []string
}

func (l *linter) addWarning(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *linter) walk(n Node, path string) {
	switch node := n.(type) {
	case nil:
	case Func:
		l.addWarning("%s: function predicate cannot be serialized", at(path))
	case Cmp:
		l.lintCmp(node, path)
	case Or:
		if len(node.Nodes) == 0 {
			l.addWarning("%s: $or with no elements never matches", at(path))
		}
		for _, child := range node.Nodes {
			l.walk(child, path)
		}
	case Nor:
		if len(node.Nodes) == 0 {
			l.addWarning("%s: $nor with no elements always matches", at(path))
		}
		for _, child := range node.Nodes {
			l.walk(child, path)
		}
	case And:
		for _, child := range node.Nodes {
			l.walk(child, path)
		}
	case Lookup:
		next := node.Key
		if path != "" {
			next = path + "." + node.Key
		}
		l.walk(node.Node, next)
	default:
		l.addWarning("%s: unknown predicate node %T", at(path), n)
	}
}

func (l *linter) lintCmp(c Cmp, path string) {
	if c.Operand == nil {
		c.Operand = ir.Null{}
	}
	switch {
	case c.Op.ordering():
		if !orderable(c.Operand) {
			l.addWarning("%s: %s against %s never matches", at(path), c.Op, c.Operand.Kind())
		}
	case c.Op == OpLike:
		if _, ok := c.Operand.(ir.Text); !ok {
			l.addWarning("%s: $like expects text, got %s", at(path), c.Operand.Kind())
		}
	case c.Op == OpIn:
		if list, ok := c.Operand.(ir.List); ok && len(list) == 0 {
			l.addWarning("%s: $in with an empty list never matches", at(path))
		}
	}
}

func at(path string) string {
	if path == "" {
		return "<record>"
	}
	return path
}

// References reports whether n inspects field at the record level, either
// directly or inside a top-level combinator.
func References(n Node, field string) bool {
	switch node := n.(type) {
	case Lookup:
		return node.Key == field
	case And:
		return referencesAny(node.Nodes, field)
	case Or:
		return referencesAny(node.Nodes, field)
	case Nor:
		return referencesAny(node.Nodes, field)
	default:
		return false
	}
}

func referencesAny(nodes []Node, field string) bool {
	for _, child := range nodes {
		if References(child, field) {
			return true
		}
	}
	return false
}
