package compiler

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/types"
)

func compileOne(t *testing.T, src, path string) (*ModelSpec, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("person.cue"))
	require.NoError(t, v.Err())
	return CompileModel(v.LookupPath(cue.ParsePath(path)))
}

func requireCompileError(t *testing.T, err error) *CompileError {
	t.Helper()
	require.Error(t, err)
	var ce *CompileError
	require.True(t, errors.As(err, &ce), "expected CompileError, got %T: %v", err, err)
	return ce
}

func TestCompileModelBasic(t *testing.T) {
	spec, err := compileOne(t, `
		model: person: {
			options: {
				uuid:     true
				equality: "strict"
				timestamps: {created: "created", modified: "modified", deleted: "deleted"}
			}
			fields: {
				name: {type: "text", required: true, min: 1, unique: true}
				age:  "number"
				nick: string
				tags: [...string]
			}
		}
	`, "model.person")
	require.NoError(t, err)

	assert.Equal(t, "person", spec.Name)
	assert.True(t, spec.Pos.IsValid())

	s := spec.Schema
	assert.Equal(t, []string{"id", "name", "age", "nick", "tags", "created", "modified", "deleted"}, s.FieldNames())
	assert.Equal(t, types.Strict, s.Equality())
	assert.True(t, s.SoftDelete())

	name, ok := s.Field("name")
	require.True(t, ok)
	assert.Equal(t, types.Text, name.Type)
	assert.True(t, name.Required)
	assert.True(t, name.Unique)
	require.NotNil(t, name.Min)
	assert.Equal(t, 1.0, *name.Min)
	assert.Nil(t, name.Max)

	nick, _ := s.Field("nick")
	assert.Equal(t, types.Text, nick.Type)
	tags, _ := s.Field("tags")
	assert.Equal(t, types.List, tags.Type)
}

func TestCompileModelDefaults(t *testing.T) {
	spec, err := compileOne(t, `
		model: item: fields: {
			label: "text"
		}
	`, "model.item")
	require.NoError(t, err)

	s := spec.Schema
	assert.Equal(t, []string{"id", "label", "created", "modified", "deleted"}, s.FieldNames())
	assert.Equal(t, types.Loose, s.Equality())
	assert.True(t, s.Options().UUID)
	assert.True(t, s.Options().Force)
}

func TestCompileModelTypeAliases(t *testing.T) {
	spec, err := compileOne(t, `
		model: event: fields: {
			flag:  "bool"
			when:  "date"
			count: int
			ratio: number
			ok:    bool
		}
	`, "model.event")
	require.NoError(t, err)

	want := map[string]types.Type{
		"flag":  types.Boolean,
		"when":  types.Temporal,
		"count": types.Number,
		"ratio": types.Number,
		"ok":    types.Boolean,
	}
	for name, typ := range want {
		f, ok := spec.Schema.Field(name)
		require.True(t, ok, name)
		assert.Equal(t, typ, f.Type, name)
	}
}

func TestCompileModelTimestampsFalse(t *testing.T) {
	spec, err := compileOne(t, `
		model: tag: {
			options: {timestamps: false, uuid: false, force: false}
			fields: label: "text"
		}
	`, "model.tag")
	require.NoError(t, err)

	s := spec.Schema
	assert.Equal(t, []string{"label"}, s.FieldNames())
	assert.Empty(t, s.CreatedField())
	assert.False(t, s.SoftDelete())
	assert.False(t, s.Options().UUID)
	assert.False(t, s.Options().Force)
}

func TestCompileModelPartialTimestamps(t *testing.T) {
	spec, err := compileOne(t, `
		model: note: {
			options: timestamps: {created: "born"}
			fields: body: "text"
		}
	`, "model.note")
	require.NoError(t, err)

	s := spec.Schema
	assert.Equal(t, "born", s.CreatedField())
	assert.Empty(t, s.ModifiedField())
	assert.False(t, s.SoftDelete())
}

func TestCompileModelFieldDefaultAndTypeDefs(t *testing.T) {
	spec, err := compileOne(t, `
		model: score: {
			options: typeDefs: {text: "n/a"}
			fields: {
				points: {type: "number", default: 5, max: 10}
				code:   {type: "text", match: "^[A-Z]+$", message: "upper case only"}
				note:   "text"
			}
		}
	`, "model.score")
	require.NoError(t, err)

	s := spec.Schema
	points, _ := s.Field("points")
	assert.Equal(t, ir.Value(ir.Number(5)), points.Default)
	require.NotNil(t, points.Max)
	assert.Equal(t, 10.0, *points.Max)

	code, _ := s.Field("code")
	require.NotNil(t, code.Match)
	assert.True(t, code.Match.MatchString("ABC"))
	assert.Equal(t, "upper case only", code.MatchMessage)

	assert.Equal(t, ir.Value(ir.Text("n/a")), s.TypeDefault(types.Text))
}

func TestCompileModelUnknownType(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			age: "float"
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "type", ce.Field)
	assert.Contains(t, ce.Message, "not valid")
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, err.Error(), "person.cue:")
}

func TestCompileModelUnknownConstraint(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			name: {type: "text", requird: true}
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields.name.requird", ce.Field)
	assert.Equal(t, "unknown constraint", ce.Message)
}

func TestCompileModelMissingFieldType(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			name: {required: true}
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields.name.type", ce.Field)
}

func TestCompileModelMissingFields(t *testing.T) {
	_, err := compileOne(t, `
		model: person: options: uuid: true
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields", ce.Field)
	assert.Contains(t, ce.Message, "required")
}

func TestCompileModelBadEquality(t *testing.T) {
	_, err := compileOne(t, `
		model: person: {
			options: equality: "fuzzy"
			fields: name: "text"
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "options.equality", ce.Field)
}

func TestCompileModelBadPattern(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			name: {type: "text", match: "("}
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields.name", ce.Field)
	assert.Contains(t, ce.Message, "match")
}

func TestCompileModelMinAboveMax(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			age: {type: "number", min: 10, max: 1}
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields.age", ce.Field)
}

func TestCompileModelReservedField(t *testing.T) {
	_, err := compileOne(t, `
		model: person: fields: {
			id: "text"
		}
	`, "model.person")

	ce := requireCompileError(t, err)
	assert.Equal(t, "fields.id", ce.Field)
	assert.Contains(t, ce.Message, "reserved")
}

func TestCompileModelExtraDecls(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`model: person: fields: {first: "text", last: "text"}`)
	require.NoError(t, v.Err())

	full := schema.Virtual("full", func(rec ir.Object) ir.Value {
		first, _ := types.TextOf(rec.Get("first"))
		last, _ := types.TextOf(rec.Get("last"))
		return ir.Text(first + " " + last)
	})
	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.person")), full)
	require.NoError(t, err)

	assert.Equal(t, []string{"full"}, spec.Schema.Virtuals())
	fn, ok := spec.Schema.Virtual("full")
	require.True(t, ok)
	assert.Equal(t, ir.Value(ir.Text("Ada Lovelace")), fn(ir.Object{"first": ir.Text("Ada"), "last": ir.Text("Lovelace")}))
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "fields.age", Message: "bad"}
	assert.Equal(t, "fields.age: bad", err.Error())
}
