package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"
	"unicode/utf16"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindTime
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "temporal"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a sealed interface over the representable record values.
// Only Null, Text, Number, Bool, Time, List and Object implement it.
type Value interface {
	Kind() Kind
	value() // sealed
}

// Null is the absent value. Lookups of missing keys return Null, never nil.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) value()     {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Text is a string value.
type Text string

func (Text) Kind() Kind { return KindText }
func (Text) value()     {}

// Number is a numeric value. All numbers are float64, matching JSON.
type Number float64

func (Number) Kind() Kind { return KindNumber }
func (Number) value()     {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }
func (Bool) value()     {}

// Time is a materialized temporal value.
type Time struct {
	time.Time
}

func (Time) Kind() Kind { return KindTime }
func (Time) value()     {}

// NewTime wraps t as a Time value.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// Same reports whether both values denote the same instant.
func (t Time) Same(o Time) bool {
	return t.Time.Equal(o.Time)
}

// MarshalJSON encodes the instant as RFC 3339 text in UTC.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTime(t.Time))
}

// FormatTime is the text form used for temporal values everywhere docket
// serializes them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// List is an ordered list of values.
type List []Value

func (List) Kind() Kind { return KindList }
func (List) value()     {}

// Object maps field names to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) Kind() Kind { return KindObject }
func (Object) value()     {}

// Get returns the value stored under key, or Null when the key is absent.
func (obj Object) Get(key string) Value {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// Has reports whether key is present with a non-null value.
func (obj Object) Has(key string) bool {
	v, ok := obj[key]
	if !ok || v == nil {
		return false
	}
	_, null := v.(Null)
	return !null
}

// Clone returns a deep copy of obj.
func (obj Object) Clone() Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

// Merge returns a copy of obj with every key of patch written over it.
func (obj Object) Merge(patch Object) Object {
	out := obj.Clone()
	if out == nil {
		out = make(Object, len(patch))
	}
	for k, v := range patch {
		out[k] = Clone(v)
	}
	return out
}

// Clone deep-copies lists and objects. Scalars are returned as is.
func Clone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Object:
		return val.Clone()
	default:
		return v
	}
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string ordering compares UTF-8 bytes, which differs above the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// CompareKeys orders strings by UTF-16 code units.
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// FromAny converts a Go value into a Value.
// Accepts nil, Values, strings, booleans, every integer and float width,
// json.Number, time.Time, slices and string-keyed maps.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(val), nil
	case int8:
		return Number(val), nil
	case int16:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case uint:
		return Number(val), nil
	case uint8:
		return Number(val), nil
	case uint16:
		return Number(val), nil
	case uint32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case float64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return Number(f), nil
	case time.Time:
		return Time{Time: val}, nil
	case *time.Time:
		if val == nil {
			return Null{}, nil
		}
		return Time{Time: *val}, nil
	case []string:
		out := make(List, len(val))
		for i, s := range val {
			out[i] = Text(s)
		}
		return out, nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	default:
		return fromReflect(reflect.ValueOf(v))
	}
}

// fromReflect handles typed slices, arrays and string-keyed maps such as
// []int or map[string]string.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null{}, nil
		}
		out := make(List, rv.Len())
		for i := range out {
			conv, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		out := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			conv, err := FromAny(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type: %s", rv.Type())
}

// ObjectFrom converts a Go map into an Object.
func ObjectFrom(m map[string]any) (Object, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	obj, _ := v.(Object)
	return obj, nil
}

// ToAny converts a Value back into plain Go values.
// Numbers become float64, Time becomes time.Time.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Text:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return val.Time
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for
// byte-stable output.
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler for Object.
func (obj *Object) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected JSON object, got %s", v.Kind())
	}
	*obj = o
	return nil
}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Number:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("number %v is not representable in JSON", f)
		}
		return json.Marshal(f)
	case Bool:
		return json.Marshal(bool(val))
	case Time:
		return val.MarshalJSON()
	case List:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value. Numbers keep full precision
// through json.Number; temporal values come back as Text.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}
