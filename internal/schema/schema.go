// Package schema declares typed record shapes: ordered field definitions,
// schema-wide options, computed virtuals and lifecycle hooks.
//
// A Schema is built once with New and never changes shape afterwards.
package schema

import (
	"regexp"
	"slices"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/types"
)

// Field is one declared attribute and its constraints.
type Field struct {
	Name string
	Type types.Type

	// Default is nil when the registry zero value applies.
	Default ir.Value

	Required bool
	Min      *float64
	Max      *float64

	// Match is nil when no pattern is declared.
	Match        *regexp.Regexp
	MatchMessage string

	Unique bool
}

// Def is the declaration form of a field, as written by callers and schema
// files.
type Def struct {
	Type         string
	Default      any
	Required     bool
	Min          *float64
	Max          *float64
	Match        string
	MatchMessage string
	Unique       bool
}

// VirtualFunc computes a non-persisted property from a record.
type VirtualFunc func(rec ir.Object) ir.Value

// Decl is one schema declaration: a field, a virtual or a hook.
type Decl interface {
	declare(b *builder) error
}

type attrDecl struct {
	name string
	def  Def
}

func (d attrDecl) declare(b *builder) error {
	f, err := b.compileField(d.name, d.def)
	if err != nil {
		return err
	}
	return b.addField(f)
}

// Attr declares a field from a full definition.
func Attr(name string, def Def) Decl {
	return attrDecl{name: name, def: def}
}

// Typed declares an unconstrained field of the named type.
func Typed(name, typ string) Decl {
	return attrDecl{name: name, def: Def{Type: typ}}
}

type virtualDecl struct {
	name string
	fn   VirtualFunc
}

func (d virtualDecl) declare(b *builder) error {
	if d.fn == nil {
		return schemaErrorf(d.name, "virtual has no accessor")
	}
	if _, dup := b.index[d.name]; dup {
		return schemaErrorf(d.name, "virtual collides with a field")
	}
	for _, v := range b.virtuals {
		if v.name == d.name {
			return schemaErrorf(d.name, "duplicate virtual")
		}
	}
	b.virtuals = append(b.virtuals, virtualDecl{name: d.name, fn: d.fn})
	return nil
}

// Virtual declares a computed property attached to instances.
func Virtual(name string, fn VirtualFunc) Decl {
	return virtualDecl{name: name, fn: fn}
}

type hookDecl struct {
	event Event
	hook  Hook
}

func (d hookDecl) declare(b *builder) error {
	if !d.event.valid() {
		return schemaErrorf("", "unknown lifecycle event %q", d.event)
	}
	if d.hook == nil {
		return schemaErrorf("", "%s hook is nil", d.event)
	}
	b.hooks[d.event] = append(b.hooks[d.event], d.hook)
	return nil
}

// On registers a lifecycle hook.
func On(event Event, hook Hook) Decl {
	return hookDecl{event: event, hook: hook}
}

// Schema is an immutable record shape.
type Schema struct {
	fields   []Field
	index    map[string]int
	opts     Options
	registry *types.Registry
	virtuals []virtualDecl
	hooks    map[Event][]Hook
}

type builder struct {
	fields   []Field
	index    map[string]int
	registry *types.Registry
	virtuals []virtualDecl
	hooks    map[Event][]Hook
	reserved map[string]bool
}

// New builds a schema from declarations and options.
//
// With uuid enabled an "id" text field comes first. Declared fields follow
// in order. With timestamps enabled, created and modified (temporal,
// required) are appended, then the optional deleted field that turns on
// soft-delete.
func New(decls []Decl, opts ...Option) (*Schema, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	eq, err := types.ParseEquality(string(o.Equality))
	if err != nil {
		return nil, schemaErrorf("", "%v", err)
	}
	o.Equality = eq

	registry := types.NewRegistry()
	for _, t := range sortedTypes(o.TypeDefaults) {
		next, err := registry.WithDefault(t, o.TypeDefaults[t])
		if err != nil {
			return nil, schemaErrorf("", "typeDefs: %v", err)
		}
		registry = next
	}

	b := &builder{
		index:    make(map[string]int),
		registry: registry,
		hooks:    make(map[Event][]Hook),
		reserved: make(map[string]bool),
	}

	if o.UUID {
		b.reserved[IDField] = true
		b.fields = append(b.fields, Field{Name: IDField, Type: types.Text})
		b.index[IDField] = 0
	}
	var stamps []Field
	if ts := o.Timestamps; ts != nil {
		for _, name := range []string{ts.Created, ts.Modified} {
			if name != "" {
				stamps = append(stamps, Field{Name: name, Type: types.Temporal, Required: true})
			}
		}
		if ts.Deleted != "" {
			stamps = append(stamps, Field{Name: ts.Deleted, Type: types.Temporal})
		}
		for _, f := range stamps {
			if b.reserved[f.Name] {
				return nil, schemaErrorf(f.Name, "timestamp name used twice")
			}
			b.reserved[f.Name] = true
		}
	}

	declared := 0
	for _, d := range decls {
		if d == nil {
			continue
		}
		if _, ok := d.(attrDecl); ok {
			declared++
		}
		if err := d.declare(b); err != nil {
			return nil, err
		}
	}
	if declared == 0 {
		return nil, schemaErrorf("", "cannot be defined without properties")
	}

	for _, f := range stamps {
		b.index[f.Name] = len(b.fields)
		b.fields = append(b.fields, f)
	}
	for _, v := range b.virtuals {
		if _, clash := b.index[v.name]; clash {
			return nil, schemaErrorf(v.name, "virtual collides with a field")
		}
	}

	return &Schema{
		fields:   b.fields,
		index:    b.index,
		opts:     o,
		registry: registry,
		virtuals: b.virtuals,
		hooks:    b.hooks,
	}, nil
}

func sortedTypes(m map[types.Type]ir.Value) []types.Type {
	out := make([]types.Type, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (b *builder) addField(f Field) error {
	if b.reserved[f.Name] {
		return schemaErrorf(f.Name, "name is reserved for bookkeeping")
	}
	if _, dup := b.index[f.Name]; dup {
		return schemaErrorf(f.Name, "declared twice")
	}
	for _, v := range b.virtuals {
		if v.name == f.Name {
			return schemaErrorf(f.Name, "field collides with a virtual")
		}
	}
	b.index[f.Name] = len(b.fields)
	b.fields = append(b.fields, f)
	return nil
}

func (b *builder) compileField(name string, def Def) (Field, error) {
	if name == "" {
		return Field{}, schemaErrorf("", "field name is empty")
	}
	if err := ValidateDef(b.registry, def); err != nil {
		return Field{}, schemaErrorf(name, "%s", err.Message)
	}

	typ, _ := types.Parse(def.Type)
	f := Field{
		Name:         name,
		Type:         typ,
		Required:     def.Required,
		Min:          def.Min,
		Max:          def.Max,
		MatchMessage: def.MatchMessage,
		Unique:       def.Unique,
	}
	if def.Match != "" {
		f.Match = regexp.MustCompile(def.Match)
	}
	if def.Default != nil {
		v, err := ir.FromAny(def.Default)
		if err != nil {
			return Field{}, schemaErrorf(name, "default: %v", err)
		}
		f.Default = types.Cast(typ, v)
	}
	return f, nil
}

// ValidateDef checks a field definition against the registry: the type must
// be registered, the pattern must compile and min must not exceed max.
func ValidateDef(registry *types.Registry, def Def) *SchemaError {
	typ, err := types.Parse(def.Type)
	if err != nil {
		return &SchemaError{Message: err.Error()}
	}
	if !registry.Known(typ) {
		return schemaErrorf("", "the type %q is not valid", def.Type)
	}
	if def.Match != "" {
		if _, err := regexp.Compile(def.Match); err != nil {
			return schemaErrorf("", "match: %v", err)
		}
	}
	if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
		return schemaErrorf("", "min %v exceeds max %v", *def.Min, *def.Max)
	}
	return nil
}

// Fields returns the field definitions in declaration order.
func (s *Schema) Fields() []Field {
	return slices.Clone(s.fields)
}

// FieldNames returns the field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a declared field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Options returns the effective options.
func (s *Schema) Options() Options {
	return s.opts
}

// Equality returns the comparison strategy for this schema.
func (s *Schema) Equality() types.Equality {
	return s.opts.Equality
}

// Registry returns the schema's type registry, including typeDefs overrides.
func (s *Schema) Registry() *types.Registry {
	return s.registry
}

// Cast converts v to t. See types.Cast.
func (s *Schema) Cast(t types.Type, v ir.Value) ir.Value {
	return types.Cast(t, v)
}

// TypeDefault returns the configured zero value for t.
func (s *Schema) TypeDefault(t types.Type) ir.Value {
	return s.registry.Default(t)
}

// Validate checks a field definition the way New does.
func (s *Schema) Validate(def Def) error {
	if err := ValidateDef(s.registry, def); err != nil {
		return err
	}
	return nil
}

// CreatedField returns the created timestamp name, or "".
func (s *Schema) CreatedField() string {
	if s.opts.Timestamps == nil {
		return ""
	}
	return s.opts.Timestamps.Created
}

// ModifiedField returns the modified timestamp name, or "".
func (s *Schema) ModifiedField() string {
	if s.opts.Timestamps == nil {
		return ""
	}
	return s.opts.Timestamps.Modified
}

// DeletedField returns the soft-delete timestamp name, or "".
func (s *Schema) DeletedField() string {
	if s.opts.Timestamps == nil {
		return ""
	}
	return s.opts.Timestamps.Deleted
}

// SoftDelete reports whether destroy stamps records instead of removing them.
func (s *Schema) SoftDelete() bool {
	return s.DeletedField() != ""
}

// IsDeleted reports whether rec carries a soft-delete stamp.
func (s *Schema) IsDeleted(rec ir.Object) bool {
	name := s.DeletedField()
	return name != "" && types.Truthy(rec.Get(name))
}

// IsBookkeeping reports whether name is the id or a timestamp field.
func (s *Schema) IsBookkeeping(name string) bool {
	if name == IDField {
		return true
	}
	if ts := s.opts.Timestamps; ts != nil && name != "" {
		return name == ts.Created || name == ts.Modified || name == ts.Deleted
	}
	return false
}

// Defaults returns the default value of every declared, non-bookkeeping
// field.
func (s *Schema) Defaults() ir.Object {
	out := make(ir.Object, len(s.fields))
	for _, f := range s.fields {
		if s.IsBookkeeping(f.Name) {
			continue
		}
		if f.Default != nil {
			out[f.Name] = ir.Clone(f.Default)
			continue
		}
		out[f.Name] = s.registry.Default(f.Type)
	}
	return out
}

// Strip removes undeclared fields when the schema is forced. The id is
// always kept. Unforced schemas get a plain copy.
func (s *Schema) Strip(rec ir.Object) ir.Object {
	if !s.opts.Force {
		return rec.Clone()
	}
	out := make(ir.Object, len(rec))
	for k, v := range rec {
		if _, declared := s.index[k]; declared || k == IDField {
			out[k] = ir.Clone(v)
		}
	}
	return out
}

// CastRecord returns a copy of rec with every declared field cast to its
// type. Undeclared fields pass through untouched.
func (s *Schema) CastRecord(rec ir.Object) ir.Object {
	out := rec.Clone()
	if out == nil {
		out = ir.Object{}
	}
	for _, f := range s.fields {
		if v, ok := out[f.Name]; ok {
			out[f.Name] = types.Cast(f.Type, v)
		}
	}
	return out
}

// Virtuals returns virtual names in declaration order.
func (s *Schema) Virtuals() []string {
	names := make([]string, len(s.virtuals))
	for i, v := range s.virtuals {
		names[i] = v.name
	}
	return names
}

// Virtual looks up a virtual accessor by name.
func (s *Schema) Virtual(name string) (VirtualFunc, bool) {
	for _, v := range s.virtuals {
		if v.name == name {
			return v.fn, true
		}
	}
	return nil, false
}

// Materialize turns temporal text and numbers on declared temporal fields
// into time values, leaving every other field as is. Records decoded from
// JSON pass through it before validation, which accepts materialized
// times on temporal fields.
func (s *Schema) Materialize(rec ir.Object) ir.Object {
	out := rec.Clone()
	if out == nil {
		return ir.Object{}
	}
	for _, f := range s.fields {
		if f.Type != types.Temporal {
			continue
		}
		if v, ok := out[f.Name]; ok {
			out[f.Name] = types.Cast(types.Temporal, v)
		}
	}
	return out
}
