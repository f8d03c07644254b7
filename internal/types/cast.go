package types

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/roach88/docket/internal/ir"
)

// timeLayouts are tried in order before falling back to dateparse.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Cast converts v into type t on a best-effort basis.
// Cast never fails: when v cannot be represented as t it is returned
// unchanged. Null stays Null for every type, and an unknown t leaves v as is.
func Cast(t Type, v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	if _, ok := v.(ir.Null); ok {
		return v
	}

	switch t {
	case Text:
		return castText(v)
	case Number:
		return castNumber(v)
	case Boolean:
		return castBoolean(v)
	case Temporal:
		return castTemporal(v)
	case List:
		return castList(v)
	default:
		return v
	}
}

func castText(v ir.Value) ir.Value {
	if s, ok := TextOf(v); ok {
		return ir.Text(s)
	}
	return v
}

// TextOf renders scalars and lists of scalars as text, the way a string
// conversion would. Objects have no text form.
func TextOf(v ir.Value) (string, bool) {
	switch val := v.(type) {
	case ir.Text:
		return string(val), true
	case ir.Number:
		return formatNumber(float64(val)), true
	case ir.Bool:
		return strconv.FormatBool(bool(val)), true
	case ir.Time:
		return ir.FormatTime(val.Time), true
	case ir.Null:
		return "", true
	case ir.List:
		parts := make([]string, len(val))
		for i, elem := range val {
			s, ok := TextOf(elem)
			if !ok {
				return "", false
			}
			parts[i] = s
		}
		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func castNumber(v ir.Value) ir.Value {
	if f, ok := NumberOf(v); ok {
		return ir.Number(f)
	}
	return v
}

// NumberOf converts a value to a float. Text is parsed after trimming and
// empty text counts as zero; booleans are 1 or 0; temporal values are Unix
// milliseconds.
func NumberOf(v ir.Value) (float64, bool) {
	switch val := v.(type) {
	case ir.Number:
		return float64(val), true
	case ir.Text:
		s := strings.TrimSpace(string(val))
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case ir.Bool:
		if val {
			return 1, true
		}
		return 0, true
	case ir.Time:
		return float64(val.UnixMilli()), true
	default:
		return 0, false
	}
}

func castBoolean(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Bool:
		return val
	case ir.Text:
		if b, err := strconv.ParseBool(strings.TrimSpace(string(val))); err == nil {
			return ir.Bool(b)
		}
	}
	return ir.Bool(Truthy(v))
}

func castTemporal(v ir.Value) ir.Value {
	if t, ok := TimeOf(v); ok {
		return ir.NewTime(t)
	}
	return v
}

// TimeOf interprets a value as an instant. Text goes through ParseTime;
// numbers are Unix milliseconds.
func TimeOf(v ir.Value) (time.Time, bool) {
	switch val := v.(type) {
	case ir.Time:
		return val.Time, true
	case ir.Text:
		return ParseTime(string(val))
	case ir.Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(f)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// ParseTime parses s as an instant. ISO 8601 forms are tried first; any
// other text containing a digit goes through dateparse, which reads
// month-first numeric dates and written-out month names. Text without a
// zone is taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if !strings.ContainsAny(s, "0123456789") {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func castList(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.List:
		return val
	case ir.Object:
		return v
	default:
		return ir.List{v}
	}
}

// Truthy applies the usual dynamic-language truthiness: null, empty text,
// zero, NaN and false are falsy; everything else is truthy.
func Truthy(v ir.Value) bool {
	switch val := v.(type) {
	case nil, ir.Null:
		return false
	case ir.Text:
		return val != ""
	case ir.Number:
		f := float64(val)
		return f != 0 && !math.IsNaN(f)
	case ir.Bool:
		return bool(val)
	default:
		return true
	}
}
