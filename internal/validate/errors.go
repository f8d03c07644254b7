package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Kind names the constraint that failed.
type Kind string

const (
	KindType     Kind = "type"
	KindRequired Kind = "required"
	KindMin      Kind = "min"
	KindMax      Kind = "max"
	KindMatch    Kind = "match"
	KindUnique   Kind = "unique"
)

// Error is one failed constraint on one field.
type Error struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e Error) Error() string {
	return e.Message
}

// Errors collects constraint failures keyed by field. A field may carry
// several failures, listed in check order.
type Errors map[string][]Error

func (e Errors) add(field string, kind Kind, format string, args ...any) {
	e[field] = append(e[field], Error{Field: field, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Error implements the error interface.
func (e Errors) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	for i, field := range e.Fields() {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		msgs := make([]string, len(e[field]))
		for j, fe := range e[field] {
			msgs[j] = fe.Message
		}
		b.WriteString(strings.Join(msgs, ", "))
	}
	return b.String()
}

// Fields returns the failing field names, sorted.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// Has reports whether field failed the given constraint.
func (e Errors) Has(field string, kind Kind) bool {
	for _, fe := range e[field] {
		if fe.Kind == kind {
			return true
		}
	}
	return false
}

// AsErrors extracts validation errors from err.
func AsErrors(err error) (Errors, bool) {
	var ve Errors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
