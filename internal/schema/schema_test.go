package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/types"
)

func ptr(f float64) *float64 { return &f }

func personDecls() []Decl {
	return []Decl{
		Attr("name", Def{Type: "text", Required: true}),
		Typed("age", "number"),
	}
}

func TestNewDefaultLayout(t *testing.T) {
	s, err := New(personDecls())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "age", "created", "modified", "deleted"}, s.FieldNames())

	id, ok := s.Field("id")
	require.True(t, ok)
	assert.Equal(t, types.Text, id.Type)

	created, _ := s.Field("created")
	assert.Equal(t, types.Temporal, created.Type)
	assert.True(t, created.Required)

	deleted, _ := s.Field("deleted")
	assert.Equal(t, types.Temporal, deleted.Type)
	assert.False(t, deleted.Required)

	assert.True(t, s.SoftDelete())
	assert.True(t, s.Options().Force)
	assert.Equal(t, types.Loose, s.Equality())
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))

	_, err = New([]Decl{Virtual("label", func(ir.Object) ir.Value { return ir.Null{} })})
	require.Error(t, err, "virtuals alone do not make a schema")
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New([]Decl{Typed("tags", "set")})
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "tags", se.Field)
	assert.Contains(t, se.Message, "is not valid")
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name  string
		decls []Decl
		want  string
	}{
		{"bad pattern", []Decl{Attr("code", Def{Type: "text", Match: "("})}, "match"},
		{"min above max", []Decl{Attr("n", Def{Type: "number", Min: ptr(5), Max: ptr(1)})}, "exceeds max"},
		{"duplicate field", []Decl{Typed("a", "text"), Typed("a", "number")}, "declared twice"},
		{"reserved id", []Decl{Typed("id", "number")}, "reserved"},
		{"reserved timestamp", []Decl{Typed("created", "text")}, "reserved"},
		{"virtual clash", []Decl{Typed("a", "text"), Virtual("a", func(ir.Object) ir.Value { return ir.Null{} })}, "collides"},
		{"unknown event", []Decl{Typed("a", "text"), On(Event("beforeSave"), func(context.Context, ir.Object) error { return nil })}, "unknown lifecycle"},
		{"empty name", []Decl{Typed("", "text")}, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.decls)
			require.Error(t, err)
			assert.True(t, IsSchemaError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewOptions(t *testing.T) {
	s, err := New(personDecls(),
		WithUUID(false),
		WithTimestamps(Timestamps{Created: "born", Modified: "touched"}),
		WithEquality(types.Strict),
		WithForce(false),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age", "born", "touched"}, s.FieldNames())
	assert.False(t, s.SoftDelete())
	assert.Equal(t, "born", s.CreatedField())
	assert.Equal(t, "touched", s.ModifiedField())
	assert.Equal(t, types.Strict, s.Equality())
	assert.False(t, s.Options().UUID)
}

func TestNewWithoutTimestamps(t *testing.T) {
	s, err := New(personDecls(), WithoutTimestamps())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "age"}, s.FieldNames())
	assert.Empty(t, s.CreatedField())
	assert.Empty(t, s.DeletedField())
	assert.False(t, s.IsBookkeeping("created"))
}

func TestNewRejectsUnknownEquality(t *testing.T) {
	_, err := New(personDecls(), WithEquality(types.Equality("fuzzy")))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestDefaults(t *testing.T) {
	s, err := New([]Decl{
		Typed("name", "text"),
		Attr("age", Def{Type: "number", Default: 18}),
		Typed("tags", "list"),
		Typed("active", "boolean"),
		Typed("due", "date"),
	}, WithTypeDefault(types.Boolean, ir.Bool(true)))
	require.NoError(t, err)

	assert.Equal(t, ir.Object{
		"name":   ir.Text(""),
		"age":    ir.Number(18),
		"tags":   ir.List{},
		"active": ir.Bool(true),
		"due":    ir.Text(""),
	}, s.Defaults())
	assert.Equal(t, ir.Bool(true), s.TypeDefault(types.Boolean))
}

func TestDefaultIsCastToFieldType(t *testing.T) {
	s, err := New([]Decl{Attr("age", Def{Type: "number", Default: "42"})})
	require.NoError(t, err)

	f, _ := s.Field("age")
	assert.Equal(t, ir.Number(42), f.Default)
}

func TestStrip(t *testing.T) {
	rec := ir.Object{"id": ir.Text("x"), "name": ir.Text("Ann"), "extra": ir.Bool(true)}

	forced, err := New(personDecls(), WithUUID(false))
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"id": ir.Text("x"), "name": ir.Text("Ann")}, forced.Strip(rec))

	loose, err := New(personDecls(), WithForce(false))
	require.NoError(t, err)
	assert.Equal(t, rec, loose.Strip(rec))
}

func TestCastRecord(t *testing.T) {
	s, err := New(personDecls())
	require.NoError(t, err)

	rec := ir.Object{
		"name":    ir.Number(7),
		"age":     ir.Text("30"),
		"created": ir.Text("2024-03-01T12:00:00Z"),
		"other":   ir.Text("30"),
	}
	got := s.CastRecord(rec)

	assert.Equal(t, ir.Text("7"), got["name"])
	assert.Equal(t, ir.Number(30), got["age"])
	assert.Equal(t, ir.NewTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)), got["created"])
	assert.Equal(t, ir.Text("30"), got["other"])
	assert.Equal(t, ir.Text("30"), rec["age"], "input untouched")
}

func TestMaterialize(t *testing.T) {
	s, err := New(personDecls())
	require.NoError(t, err)

	rec := ir.Object{
		"age":     ir.Text("30"),
		"created": ir.Text("2024-03-01"),
		"deleted": ir.Text("soon"),
	}
	got := s.Materialize(rec)

	assert.Equal(t, ir.Text("30"), got["age"], "non-temporal fields keep their raw value")
	assert.Equal(t, ir.NewTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), got["created"])
	assert.Equal(t, ir.Text("soon"), got["deleted"], "unparseable text is left for the validator")
	assert.NotContains(t, got, "modified")
}

func TestIsDeleted(t *testing.T) {
	s, err := New(personDecls())
	require.NoError(t, err)

	assert.False(t, s.IsDeleted(ir.Object{"name": ir.Text("a")}))
	assert.False(t, s.IsDeleted(ir.Object{"deleted": ir.Text("")}))
	assert.True(t, s.IsDeleted(ir.Object{"deleted": ir.NewTime(time.Now())}))
}

func TestVirtuals(t *testing.T) {
	s, err := New([]Decl{
		Typed("first", "text"),
		Typed("last", "text"),
		Virtual("full", func(rec ir.Object) ir.Value {
			return ir.Text(strings.TrimSpace(string(rec.Get("first").(ir.Text)) + " " + string(rec.Get("last").(ir.Text))))
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"full"}, s.Virtuals())
	fn, ok := s.Virtual("full")
	require.True(t, ok)
	assert.Equal(t, ir.Text("Ann Lee"), fn(ir.Object{"first": ir.Text("Ann"), "last": ir.Text("Lee")}))

	_, ok = s.Virtual("missing")
	assert.False(t, ok)
}

func TestRunHooks(t *testing.T) {
	var calls []string
	s, err := New([]Decl{
		Typed("name", "text"),
		On(BeforeCreate, func(_ context.Context, rec ir.Object) error {
			calls = append(calls, "first")
			rec["name"] = ir.Text("hooked")
			return nil
		}),
		On(BeforeCreate, func(context.Context, ir.Object) error {
			calls = append(calls, "second")
			return errors.New("stop")
		}),
		On(BeforeCreate, func(context.Context, ir.Object) error {
			calls = append(calls, "third")
			return nil
		}),
	})
	require.NoError(t, err)

	rec := ir.Object{}
	err = s.RunHooks(context.Background(), BeforeCreate, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beforeCreate hook 1: stop")
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, ir.Text("hooked"), rec["name"])

	assert.True(t, s.HasHooks(BeforeCreate))
	assert.False(t, s.HasHooks(AfterDestroy))
	assert.NoError(t, s.RunHooks(context.Background(), AfterDestroy, rec))
}

func TestValidateDef(t *testing.T) {
	s, err := New(personDecls())
	require.NoError(t, err)

	assert.NoError(t, s.Validate(Def{Type: "Number"}))
	assert.Error(t, s.Validate(Def{Type: "uuid"}))
}
