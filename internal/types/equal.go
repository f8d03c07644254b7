package types

import (
	"fmt"
	"math"

	"github.com/roach88/docket/internal/ir"
)

// Equality selects how $eq, $ne, $in and uniqueness checks compare values.
type Equality string

const (
	// Loose coerces across representations: 30 equals "30", true equals 1.
	Loose Equality = "default"
	// Strict requires the same representation and value.
	Strict Equality = "strict"
)

// ParseEquality resolves an equality mode name. The empty string selects
// Loose.
func ParseEquality(s string) (Equality, error) {
	switch Equality(s) {
	case "", Loose, "loose":
		return Loose, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("unknown equality mode %q (must be %q or %q)", s, Loose, Strict)
	}
}

// Equal compares a and b under the selected mode.
func (e Equality) Equal(a, b ir.Value) bool {
	if e == Strict {
		return StrictEqual(a, b)
	}
	return LooseEqual(a, b)
}

// StrictEqual reports whether a and b have the same kind and value.
// Lists and objects compare element-wise; temporal values by instant.
func StrictEqual(a, b ir.Value) bool {
	a, b = orNull(a), orNull(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case ir.Null:
		return true
	case ir.Text:
		return av == b.(ir.Text)
	case ir.Number:
		return av == b.(ir.Number)
	case ir.Bool:
		return av == b.(ir.Bool)
	case ir.Time:
		return av.Same(b.(ir.Time))
	case ir.List:
		return listEqual(av, b.(ir.List), StrictEqual)
	case ir.Object:
		return objectEqual(av, b.(ir.Object), StrictEqual)
	default:
		return false
	}
}

// LooseEqual compares with coercion between scalar representations.
// Null only equals Null. Text and numbers compare numerically, booleans
// count as 1 and 0, temporal values match text or numbers denoting the same
// instant, and a list compared with a scalar compares its text form.
func LooseEqual(a, b ir.Value) bool {
	a, b = orNull(a), orNull(b)

	_, aNull := a.(ir.Null)
	_, bNull := b.(ir.Null)
	if aNull || bNull {
		return aNull && bNull
	}

	if at, ok := a.(ir.Time); ok {
		return timeLooseEqual(at, b)
	}
	if bt, ok := b.(ir.Time); ok {
		return timeLooseEqual(bt, a)
	}

	if a.Kind() == b.Kind() {
		switch av := a.(type) {
		case ir.List:
			return listEqual(av, b.(ir.List), LooseEqual)
		case ir.Object:
			return objectEqual(av, b.(ir.Object), LooseEqual)
		case ir.Number:
			return float64(av) == float64(b.(ir.Number))
		default:
			return a == b
		}
	}

	if _, ok := a.(ir.Object); ok {
		return false
	}
	if _, ok := b.(ir.Object); ok {
		return false
	}

	if ab, ok := a.(ir.Bool); ok {
		return LooseEqual(boolNumber(ab), b)
	}
	if bb, ok := b.(ir.Bool); ok {
		return LooseEqual(a, boolNumber(bb))
	}

	if al, ok := a.(ir.List); ok {
		s, ok := TextOf(al)
		return ok && LooseEqual(ir.Text(s), b)
	}
	if bl, ok := b.(ir.List); ok {
		s, ok := TextOf(bl)
		return ok && LooseEqual(a, ir.Text(s))
	}

	// one text, one number
	af, aok := NumberOf(a)
	bf, bok := NumberOf(b)
	return aok && bok && af == bf && !math.IsNaN(af)
}

func timeLooseEqual(t ir.Time, other ir.Value) bool {
	switch ov := other.(type) {
	case ir.Time:
		return t.Same(ov)
	case ir.Text, ir.Number:
		ot, ok := TimeOf(ov)
		return ok && t.Equal(ot)
	default:
		return false
	}
}

func boolNumber(b ir.Bool) ir.Number {
	if b {
		return 1
	}
	return 0
}

func orNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}

func listEqual(a, b ir.List, eq func(a, b ir.Value) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

func objectEqual(a, b ir.Object, eq func(a, b ir.Value) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !eq(av, bv) {
			return false
		}
	}
	return true
}
