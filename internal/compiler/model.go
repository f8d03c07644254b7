package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/types"
)

// ModelSpec is one compiled model declaration.
type ModelSpec struct {
	Name   string
	Schema *schema.Schema
	Pos    token.Pos
}

// constraintKeys are the keys accepted in a field block.
var constraintKeys = map[string]bool{
	"type":     true,
	"default":  true,
	"required": true,
	"min":      true,
	"max":      true,
	"match":    true,
	"message":  true,
	"unique":   true,
}

// CompileModel parses a CUE value into a ModelSpec.
//
// The CUE value should be the model struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`model: person: { fields: { name: "text" } }`)
//	spec, err := CompileModel(v.LookupPath(cue.ParsePath("model.person")))
//
// extra declarations (virtuals, hooks) are appended after the fields; CUE
// has no way to express them.
func CompileModel(v cue.Value, extra ...schema.Decl) (*ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ModelSpec{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = strings.Trim(labels[len(labels)-1].String(), `"`)
	}

	opts, err := parseOptions(v)
	if err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	decls, err := parseFields(fieldsVal)
	if err != nil {
		return nil, err
	}
	decls = append(decls, extra...)

	s, err := schema.New(decls, opts...)
	if err != nil {
		return nil, &CompileError{
			Field:   schemaErrorField(err),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	spec.Schema = s
	return spec, nil
}

// parseOptions reads the optional options block.
func parseOptions(v cue.Value) ([]schema.Option, error) {
	optVal := v.LookupPath(cue.ParsePath("options"))
	if !optVal.Exists() {
		return nil, nil
	}

	var opts []schema.Option

	if uv := optVal.LookupPath(cue.ParsePath("uuid")); uv.Exists() {
		b, err := uv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		opts = append(opts, schema.WithUUID(b))
	}

	if fv := optVal.LookupPath(cue.ParsePath("force")); fv.Exists() {
		b, err := fv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		opts = append(opts, schema.WithForce(b))
	}

	if ev := optVal.LookupPath(cue.ParsePath("equality")); ev.Exists() {
		s, err := ev.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		eq, err := types.ParseEquality(s)
		if err != nil {
			return nil, &CompileError{Field: "options.equality", Message: err.Error(), Pos: ev.Pos()}
		}
		opts = append(opts, schema.WithEquality(eq))
	}

	if tv := optVal.LookupPath(cue.ParsePath("timestamps")); tv.Exists() {
		opt, err := parseTimestamps(tv)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	if dv := optVal.LookupPath(cue.ParsePath("typeDefs")); dv.Exists() {
		iter, err := dv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			t, err := types.Parse(iter.Label())
			if err != nil {
				return nil, &CompileError{Field: "options.typeDefs", Message: err.Error(), Pos: iter.Value().Pos()}
			}
			val, err := decodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			opts = append(opts, schema.WithTypeDefault(t, val))
		}
	}

	return opts, nil
}

// parseTimestamps accepts false, true, or a struct of field names. Names
// omitted from the struct are disabled.
func parseTimestamps(v cue.Value) (schema.Option, error) {
	if v.Kind() == cue.BoolKind {
		on, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if !on {
			return schema.WithoutTimestamps(), nil
		}
		return schema.WithTimestamps(schema.DefaultTimestamps()), nil
	}

	var ts schema.Timestamps
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"created", &ts.Created},
		{"modified", &ts.Modified},
		{"deleted", &ts.Deleted},
	} {
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			continue
		}
		s, err := fv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		*f.dst = s
	}
	return schema.WithTimestamps(ts), nil
}

// parseFields extracts field declarations in source order.
func parseFields(v cue.Value) ([]schema.Decl, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []schema.Decl
	for iter.Next() {
		name := iter.Label()
		fv := iter.Value()
		if err := fv.Err(); err != nil {
			return nil, formatCUEError(err)
		}

		if fv.IncompleteKind() != cue.StructKind {
			typ, err := extractTypeName(fv)
			if err != nil {
				return nil, err
			}
			decls = append(decls, schema.Typed(name, typ))
			continue
		}

		def, err := parseFieldDef(name, fv)
		if err != nil {
			return nil, err
		}
		decls = append(decls, schema.Attr(name, def))
	}
	return decls, nil
}

// parseFieldDef reads a {type, ...constraints} block.
func parseFieldDef(name string, v cue.Value) (schema.Def, error) {
	var def schema.Def

	iter, err := v.Fields()
	if err != nil {
		return def, formatCUEError(err)
	}
	for iter.Next() {
		if !constraintKeys[iter.Label()] {
			return def, &CompileError{
				Field:   fmt.Sprintf("fields.%s.%s", name, iter.Label()),
				Message: "unknown constraint",
				Pos:     iter.Value().Pos(),
			}
		}
	}

	tv := v.LookupPath(cue.ParsePath("type"))
	if !tv.Exists() {
		return def, &CompileError{
			Field:   fmt.Sprintf("fields.%s.type", name),
			Message: "field type is required",
			Pos:     v.Pos(),
		}
	}
	if def.Type, err = extractTypeName(tv); err != nil {
		return def, err
	}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		var d any
		if err := dv.Decode(&d); err != nil {
			return def, formatCUEError(err)
		}
		def.Default = d
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"required", &def.Required},
		{"unique", &def.Unique},
	} {
		bv := v.LookupPath(cue.ParsePath(b.key))
		if !bv.Exists() {
			continue
		}
		if *b.dst, err = bv.Bool(); err != nil {
			return def, formatCUEError(err)
		}
	}

	for _, n := range []struct {
		key string
		dst **float64
	}{
		{"min", &def.Min},
		{"max", &def.Max},
	} {
		nv := v.LookupPath(cue.ParsePath(n.key))
		if !nv.Exists() {
			continue
		}
		f, err := nv.Float64()
		if err != nil {
			return def, formatCUEError(err)
		}
		*n.dst = &f
	}

	if mv := v.LookupPath(cue.ParsePath("match")); mv.Exists() {
		if def.Match, err = mv.String(); err != nil {
			return def, formatCUEError(err)
		}
	}
	if mv := v.LookupPath(cue.ParsePath("message")); mv.Exists() {
		if def.MatchMessage, err = mv.String(); err != nil {
			return def, formatCUEError(err)
		}
	}

	if serr := schema.ValidateDef(types.NewRegistry(), def); serr != nil {
		return def, &CompileError{
			Field:   fmt.Sprintf("fields.%s", name),
			Message: serr.Message,
			Pos:     v.Pos(),
		}
	}
	return def, nil
}

// extractTypeName resolves a field type. A concrete string names a
// registered type ("text", "number", ...); a bare CUE kind maps onto the
// closest one.
func extractTypeName(v cue.Value) (string, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		name, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		t, err := types.Parse(name)
		if err != nil {
			return "", &CompileError{Field: "type", Message: err.Error(), Pos: v.Pos()}
		}
		return string(t), nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return string(types.Text), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		return string(types.Number), nil
	case cue.BoolKind:
		return string(types.Boolean), nil
	case cue.ListKind:
		return string(types.List), nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func decodeValue(v cue.Value) (ir.Value, error) {
	var d any
	if err := v.Decode(&d); err != nil {
		return nil, formatCUEError(err)
	}
	val, err := ir.FromAny(d)
	if err != nil {
		return nil, &CompileError{Field: "value", Message: err.Error(), Pos: v.Pos()}
	}
	return val, nil
}

func schemaErrorField(err error) string {
	if serr, ok := err.(*schema.SchemaError); ok && serr.Field != "" {
		return "fields." + serr.Field
	}
	return "schema"
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
