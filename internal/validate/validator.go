// Package validate checks candidate records against a schema's field
// constraints.
package validate

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/types"
)

// UniqueChecker answers whether value is free for field among the rows of
// one model, ignoring the row whose id is self.
type UniqueChecker interface {
	Unique(ctx context.Context, field string, value ir.Value, self string) (bool, error)
}

// Validator runs a schema's per-field constraints.
type Validator struct {
	schema *schema.Schema
	unique UniqueChecker
}

// New returns a validator for s. unique may be nil, in which case unique
// constraints always pass.
func New(s *schema.Schema, unique UniqueChecker) *Validator {
	return &Validator{schema: s, unique: unique}
}

// Run checks every declared field present on candidate. Constraints run in
// a fixed order (type, required, min, max, match, unique) and each failure
// is recorded independently. Run returns nil Errors when every check
// passed; the error return is reserved for unique lookups that failed.
func (v *Validator) Run(ctx context.Context, candidate ir.Object, self string) (Errors, error) {
	errs := Errors{}
	for _, f := range v.schema.Fields() {
		val, present := candidate[f.Name]
		if !present {
			continue
		}
		if val == nil {
			val = ir.Null{}
		}
		checkType(errs, f, val)
		checkRequired(errs, f, val)
		if isNull(val) {
			continue
		}
		checkMin(errs, f, val)
		checkMax(errs, f, val)
		checkMatch(errs, f, val)
		if f.Unique && v.unique != nil {
			ok, err := v.unique.Unique(ctx, f.Name, types.Cast(f.Type, val), self)
			if err != nil {
				return nil, fmt.Errorf("unique check on %q: %w", f.Name, err)
			}
			if !ok {
				text, _ := types.TextOf(val)
				errs.add(f.Name, KindUnique, "%s is not unique.", text)
			}
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func isNull(v ir.Value) bool {
	_, ok := v.(ir.Null)
	return ok
}

func kindName(v ir.Value) string {
	if t := types.Detect(v); t != "" {
		return string(t)
	}
	return v.Kind().String()
}

func checkType(errs Errors, f schema.Field, v ir.Value) {
	if types.Detect(v) == f.Type {
		return
	}
	if !types.Truthy(v) && !f.Required {
		return
	}
	errs.add(f.Name, KindType, "%s was changed using type %s but requires %s", f.Name, kindName(v), f.Type)
}

func checkRequired(errs Errors, f schema.Field, v ir.Value) {
	if !f.Required {
		return
	}
	missing := false
	switch f.Type {
	case types.Text:
		s, ok := v.(ir.Text)
		missing = !ok || s == ""
	default:
		missing = types.Detect(v) != f.Type
	}
	if missing {
		errs.add(f.Name, KindRequired, "%s is required", f.Name)
	}
}

// measure returns the quantity min and max compare: rune length for text
// fields, the value for number fields.
func measure(f schema.Field, v ir.Value) (float64, bool) {
	switch f.Type {
	case types.Text:
		if s, ok := v.(ir.Text); ok {
			return float64(utf8.RuneCountInString(string(s))), true
		}
	case types.Number:
		if n, ok := v.(ir.Number); ok {
			return float64(n), true
		}
	}
	return 0, false
}

func checkMin(errs Errors, f schema.Field, v ir.Value) {
	if f.Min == nil {
		return
	}
	if m, ok := measure(f, v); ok && m < *f.Min {
		errs.add(f.Name, KindMin, "%s must be at least %s.", f.Name, formatBound(*f.Min))
	}
}

func checkMax(errs Errors, f schema.Field, v ir.Value) {
	if f.Max == nil {
		return
	}
	if m, ok := measure(f, v); ok && m > *f.Max {
		errs.add(f.Name, KindMax, "%s must be at most %s.", f.Name, formatBound(*f.Max))
	}
}

func checkMatch(errs Errors, f schema.Field, v ir.Value) {
	if f.Match == nil {
		return
	}
	s, ok := types.TextOf(v)
	if ok && f.Match.MatchString(s) {
		return
	}
	if f.MatchMessage != "" {
		errs.add(f.Name, KindMatch, "%s", f.MatchMessage)
		return
	}
	errs.add(f.Name, KindMatch, "%s does not match expression /%s/", f.Name, f.Match.String())
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}
