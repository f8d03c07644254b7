// Package types holds the type registry shared by schemas and the query
// evaluator: the fixed set of declarable types, their zero values, the
// best-effort cast into each type, and the equality strategies.
package types

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/docket/internal/ir"
)

// Type is a declarable field type.
type Type string

const (
	Text     Type = "text"
	Number   Type = "number"
	Boolean  Type = "boolean"
	Temporal Type = "temporal"
	List     Type = "list"
)

var builtin = []Type{Text, Number, Boolean, Temporal, List}

// aliases accepts the spellings commonly found in schema files.
var aliases = map[string]Type{
	"text":     Text,
	"string":   Text,
	"number":   Number,
	"boolean":  Boolean,
	"bool":     Boolean,
	"temporal": Temporal,
	"date":     Temporal,
	"time":     Temporal,
	"list":     List,
	"array":    List,
}

// Parse resolves a type name or alias, case-insensitively.
func Parse(name string) (Type, error) {
	if t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("the type %q is not valid", name)
}

// Registry maps each known type to its configured zero value.
// A Registry is immutable; WithDefault returns a modified copy.
type Registry struct {
	defaults map[Type]ir.Value
}

// NewRegistry returns a registry with the stock zero values:
// text "", number 0, boolean false, list [], temporal "".
func NewRegistry() *Registry {
	return &Registry{defaults: map[Type]ir.Value{
		Text:     ir.Text(""),
		Number:   ir.Number(0),
		Boolean:  ir.Bool(false),
		Temporal: ir.Text(""),
		List:     ir.List{},
	}}
}

// Known reports whether t belongs to the registry.
func (r *Registry) Known(t Type) bool {
	_, ok := r.defaults[t]
	return ok
}

// Types lists the registered types in declaration order.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.defaults))
	for _, t := range builtin {
		if r.Known(t) {
			out = append(out, t)
		}
	}
	return slices.Clip(out)
}

// Default returns a fresh copy of the zero value for t, or Null when t is
// not registered.
func (r *Registry) Default(t Type) ir.Value {
	v, ok := r.defaults[t]
	if !ok {
		return ir.Null{}
	}
	return ir.Clone(v)
}

// WithDefault returns a copy of r whose zero value for t is v.
func (r *Registry) WithDefault(t Type, v ir.Value) (*Registry, error) {
	if !r.Known(t) {
		return nil, fmt.Errorf("the type %q is not valid", t)
	}
	next := &Registry{defaults: make(map[Type]ir.Value, len(r.defaults))}
	for k, d := range r.defaults {
		next.defaults[k] = d
	}
	next.defaults[t] = ir.Clone(v)
	return next, nil
}

// Detect returns the declarable type a runtime value belongs to, or "" for
// null and nested objects.
func Detect(v ir.Value) Type {
	switch v.(type) {
	case ir.Text:
		return Text
	case ir.Number:
		return Number
	case ir.Bool:
		return Boolean
	case ir.Time:
		return Temporal
	case ir.List:
		return List
	default:
		return ""
	}
}
