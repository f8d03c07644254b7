package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = Text("test")
	var _ Value = Number(42)
	var _ Value = Bool(true)
	var _ Value = NewTime(time.Now())
	var _ Value = List{Text("a"), Number(1)}
	var _ Value = Object{"key": Text("value")}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", Text("").Kind().String())
	assert.Equal(t, "number", Number(0).Kind().String())
	assert.Equal(t, "boolean", Bool(false).Kind().String())
	assert.Equal(t, "temporal", Time{}.Kind().String())
	assert.Equal(t, "list", List{}.Kind().String())
	assert.Equal(t, "object", Object{}.Kind().String())
	assert.Equal(t, "null", Null{}.Kind().String())
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{
		"zebra":  Text("z"),
		"apple":  Text("a"),
		"banana": Text("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestObjectSortedKeysUTF16Order(t *testing.T) {
	// U+FB01 sorts before U+1F600 in UTF-8 byte order but after it in
	// UTF-16 code unit order (surrogates start at 0xD800).
	obj := Object{
		"\U0001F600": Number(1),
		"\ufb01":     Number(2),
		"a":          Number(3),
	}

	assert.Equal(t, []string{"a", "\U0001F600", "\ufb01"}, obj.SortedKeys())
}

func TestObjectGetMissingIsNull(t *testing.T) {
	obj := Object{"name": Text("Ann"), "gone": Null{}}

	assert.Equal(t, Text("Ann"), obj.Get("name"))
	assert.Equal(t, Null{}, obj.Get("age"))
	assert.True(t, obj.Has("name"))
	assert.False(t, obj.Has("gone"))
	assert.False(t, obj.Has("age"))
}

func TestObjectCloneIsDeep(t *testing.T) {
	orig := Object{
		"tags":  List{Text("a")},
		"inner": Object{"n": Number(1)},
	}

	cp := orig.Clone()
	cp["tags"].(List)[0] = Text("changed")
	cp["inner"].(Object)["n"] = Number(2)

	assert.Equal(t, Text("a"), orig["tags"].(List)[0])
	assert.Equal(t, Number(1), orig["inner"].(Object)["n"])
}

func TestObjectMerge(t *testing.T) {
	base := Object{"name": Text("Ann"), "age": Number(30)}
	merged := base.Merge(Object{"age": Number(31), "city": Text("Oslo")})

	assert.Equal(t, Object{"name": Text("Ann"), "age": Number(31), "city": Text("Oslo")}, merged)
	assert.Equal(t, Number(30), base["age"], "merge must not mutate the receiver")
}

func TestFromAny(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", Text("x")},
		{"bool", true, Bool(true)},
		{"int", 7, Number(7)},
		{"int64", int64(-3), Number(-3)},
		{"uint8", uint8(4), Number(4)},
		{"float", 1.5, Number(1.5)},
		{"json number", json.Number("12.25"), Number(12.25)},
		{"time", ts, NewTime(ts)},
		{"string slice", []string{"a", "b"}, List{Text("a"), Text("b")}},
		{"nested", map[string]any{"a": []any{1, "b"}}, Object{"a": List{Number(1), Text("b")}}},
		{"value passthrough", Text("v"), Text("v")},
		{"int slice", []int{10, 70}, List{Number(10), Number(70)}},
		{"float slice", []float64{0.5}, List{Number(0.5)}},
		{"time slice", []time.Time{ts}, List{NewTime(ts)}},
		{"array", [2]bool{true, false}, List{Bool(true), Bool(false)}},
		{"nil typed slice", []int(nil), Null{}},
		{"string map", map[string]string{"a": "b"}, Object{"a": Text("b")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = FromAny(map[int]string{1: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type: map[int]string")

	_, err = FromAny(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `object["bad"]`)
}

func TestToAnyInvertsFromAny(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	obj := Object{
		"name":  Text("Ann"),
		"age":   Number(30),
		"admin": Bool(false),
		"born":  NewTime(ts),
		"tags":  List{Text("x")},
		"none":  Null{},
	}

	got := ToAny(obj).(map[string]any)
	assert.Equal(t, "Ann", got["name"])
	assert.Equal(t, float64(30), got["age"])
	assert.Equal(t, false, got["admin"])
	assert.Equal(t, ts, got["born"])
	assert.Equal(t, []any{"x"}, got["tags"])
	assert.Nil(t, got["none"])
}

func TestObjectJSON(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	obj := Object{"b": Number(2), "a": Text("x"), "t": NewTime(ts)}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2,"t":"2024-03-01T12:00:00Z"}`, string(data))

	var back Object
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Text("x"), back["a"])
	assert.Equal(t, Number(2), back["b"])
	// temporal values come back as text; the schema casts them again
	assert.Equal(t, Text("2024-03-01T12:00:00Z"), back["t"])
}

func TestObjectUnmarshalRejectsNonObject(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`[1,2]`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected JSON object")
}

func TestTimeSame(t *testing.T) {
	a := NewTime(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	b := NewTime(time.Date(2024, 1, 1, 11, 0, 0, 0, time.FixedZone("CET", 3600)))

	assert.True(t, a.Same(b))
	assert.False(t, a.Before(b.Time))
	assert.False(t, a.After(b.Time))
}
