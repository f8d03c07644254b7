package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/ir"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"text", Text},
		{"String", Text},
		{"number", Number},
		{"Boolean", Boolean},
		{"bool", Boolean},
		{"temporal", Temporal},
		{"Date", Temporal},
		{"list", List},
		{"Array", List},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `the type "uuid" is not valid`)
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, ir.Text(""), r.Default(Text))
	assert.Equal(t, ir.Number(0), r.Default(Number))
	assert.Equal(t, ir.Bool(false), r.Default(Boolean))
	assert.Equal(t, ir.List{}, r.Default(List))
	assert.Equal(t, ir.Text(""), r.Default(Temporal))
	assert.Equal(t, ir.Null{}, r.Default(Type("uuid")))
	assert.Equal(t, []Type{Text, Number, Boolean, Temporal, List}, r.Types())
}

func TestRegistryDefaultIsFreshCopy(t *testing.T) {
	r, err := NewRegistry().WithDefault(List, ir.List{ir.Text("seed")})
	require.NoError(t, err)

	first := r.Default(List).(ir.List)
	first[0] = ir.Text("mutated")

	assert.Equal(t, ir.List{ir.Text("seed")}, r.Default(List))
}

func TestRegistryWithDefault(t *testing.T) {
	base := NewRegistry()
	next, err := base.WithDefault(Number, ir.Number(-1))
	require.NoError(t, err)

	assert.Equal(t, ir.Number(-1), next.Default(Number))
	assert.Equal(t, ir.Number(0), base.Default(Number), "base registry unchanged")

	_, err = base.WithDefault(Type("uuid"), ir.Text(""))
	require.Error(t, err)
}

func TestDetect(t *testing.T) {
	assert.Equal(t, Text, Detect(ir.Text("a")))
	assert.Equal(t, Number, Detect(ir.Number(1)))
	assert.Equal(t, Boolean, Detect(ir.Bool(true)))
	assert.Equal(t, Temporal, Detect(ir.NewTime(time.Now())))
	assert.Equal(t, List, Detect(ir.List{}))
	assert.Equal(t, Type(""), Detect(ir.Null{}))
	assert.Equal(t, Type(""), Detect(ir.Object{}))
}

func TestCast(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		typ  Type
		in   ir.Value
		want ir.Value
	}{
		{"text from number", Text, ir.Number(30), ir.Text("30")},
		{"text from fraction", Text, ir.Number(1.25), ir.Text("1.25")},
		{"text from bool", Text, ir.Bool(true), ir.Text("true")},
		{"text from time", Text, ir.NewTime(ts), ir.Text("2024-03-01T12:00:00Z")},
		{"text from list", Text, ir.List{ir.Number(1), ir.Text("a")}, ir.Text("1,a")},
		{"number from text", Number, ir.Text(" 42 "), ir.Number(42)},
		{"number from empty text", Number, ir.Text(""), ir.Number(0)},
		{"number from bad text", Number, ir.Text("abc"), ir.Text("abc")},
		{"number from bool", Number, ir.Bool(true), ir.Number(1)},
		{"number from time", Number, ir.NewTime(ts), ir.Number(float64(ts.UnixMilli()))},
		{"boolean from text", Boolean, ir.Text("false"), ir.Bool(false)},
		{"boolean from other text", Boolean, ir.Text("yes"), ir.Bool(true)},
		{"boolean from empty text", Boolean, ir.Text(""), ir.Bool(false)},
		{"boolean from zero", Boolean, ir.Number(0), ir.Bool(false)},
		{"temporal from rfc3339", Temporal, ir.Text("2024-03-01T12:00:00Z"), ir.NewTime(ts)},
		{"temporal from date", Temporal, ir.Text("2024-03-01"), ir.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"temporal from minute precision", Temporal, ir.Text("2024-03-01T12:00"), ir.NewTime(ts)},
		{"temporal from slashed date", Temporal, ir.Text("2024/03/01"), ir.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"temporal from written date", Temporal, ir.Text("March 1, 2024"), ir.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
		{"temporal from month first", Temporal, ir.Text("01/03/2024 10:00"), ir.NewTime(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC))},
		{"temporal from millis", Temporal, ir.Number(float64(ts.UnixMilli())), ir.NewTime(ts)},
		{"temporal from empty text", Temporal, ir.Text(""), ir.Text("")},
		{"temporal from garbage", Temporal, ir.Text("soon"), ir.Text("soon")},
		{"list from scalar", List, ir.Text("a"), ir.List{ir.Text("a")}},
		{"list from list", List, ir.List{ir.Number(1)}, ir.List{ir.Number(1)}},
		{"null stays null", Number, ir.Null{}, ir.Null{}},
		{"unknown type", Type("uuid"), ir.Text("x"), ir.Text("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cast(tt.typ, tt.in))
		})
	}
}

func TestCastIdempotent(t *testing.T) {
	inputs := []ir.Value{
		ir.Text("30"), ir.Text("abc"), ir.Text(""), ir.Text("2024-03-01"),
		ir.Number(1.5), ir.Number(0), ir.Bool(true), ir.Null{},
		ir.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		ir.List{ir.Text("a"), ir.Number(2)},
	}

	for _, typ := range NewRegistry().Types() {
		for _, in := range inputs {
			once := Cast(typ, in)
			twice := Cast(typ, once)
			assert.Equal(t, once, twice, "cast %s of %#v", typ, in)
		}
	}
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(ir.Null{}))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(ir.Text("")))
	assert.False(t, Truthy(ir.Number(0)))
	assert.False(t, Truthy(ir.Bool(false)))

	assert.True(t, Truthy(ir.Text("0")))
	assert.True(t, Truthy(ir.Number(-1)))
	assert.True(t, Truthy(ir.List{}))
	assert.True(t, Truthy(ir.NewTime(time.Now())))
}

func TestParseEquality(t *testing.T) {
	e, err := ParseEquality("")
	require.NoError(t, err)
	assert.Equal(t, Loose, e)

	e, err = ParseEquality("strict")
	require.NoError(t, err)
	assert.Equal(t, Strict, e)

	_, err = ParseEquality("fuzzy")
	require.Error(t, err)
}

func TestLooseEqual(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b ir.Value
		want bool
	}{
		{"same text", ir.Text("a"), ir.Text("a"), true},
		{"number and numeric text", ir.Number(30), ir.Text("30"), true},
		{"number and other text", ir.Number(30), ir.Text("thirty"), false},
		{"empty text and zero", ir.Text(""), ir.Number(0), true},
		{"bool and number", ir.Bool(true), ir.Number(1), true},
		{"bool and text", ir.Bool(false), ir.Text("0"), true},
		{"null and null", ir.Null{}, ir.Null{}, true},
		{"null and zero", ir.Null{}, ir.Number(0), false},
		{"time and time", ir.NewTime(ts), ir.NewTime(ts.In(time.FixedZone("X", 7200))), true},
		{"time and text", ir.NewTime(ts), ir.Text("2024-03-01T12:00:00Z"), true},
		{"time and millis", ir.NewTime(ts), ir.Number(float64(ts.UnixMilli())), true},
		{"list and joined text", ir.List{ir.Number(1), ir.Number(2)}, ir.Text("1,2"), true},
		{"single list and number", ir.List{ir.Number(7)}, ir.Number(7), true},
		{"lists deep", ir.List{ir.Text("1")}, ir.List{ir.Number(1)}, true},
		{"object and text", ir.Object{}, ir.Text(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooseEqual(tt.a, tt.b))
			assert.Equal(t, tt.want, LooseEqual(tt.b, tt.a), "loose equality is symmetric")
		})
	}
}

func TestStrictEqual(t *testing.T) {
	assert.True(t, StrictEqual(ir.Text("a"), ir.Text("a")))
	assert.False(t, StrictEqual(ir.Number(30), ir.Text("30")))
	assert.False(t, StrictEqual(ir.Bool(true), ir.Number(1)))
	assert.True(t, StrictEqual(ir.List{ir.Number(1)}, ir.List{ir.Number(1)}))
	assert.False(t, StrictEqual(ir.List{ir.Number(1)}, ir.List{ir.Text("1")}))
	assert.True(t, StrictEqual(ir.Object{"a": ir.Null{}}, ir.Object{"a": ir.Null{}}))
	assert.True(t, StrictEqual(nil, ir.Null{}))

	assert.True(t, Strict.Equal(ir.Number(2), ir.Number(2)))
	assert.False(t, Strict.Equal(ir.Number(2), ir.Text("2")))
	assert.True(t, Loose.Equal(ir.Number(2), ir.Text("2")))
}
