package schema

import (
	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/types"
)

// IDField is the record key every persisted record carries.
const IDField = "id"

// Timestamps names the bookkeeping timestamp fields. An empty name disables
// that stamp; a non-empty Deleted name turns on soft-delete.
type Timestamps struct {
	Created  string
	Modified string
	Deleted  string
}

// DefaultTimestamps returns the stock created/modified/deleted names.
func DefaultTimestamps() Timestamps {
	return Timestamps{Created: "created", Modified: "modified", Deleted: "deleted"}
}

// Options are the schema-wide settings.
type Options struct {
	// UUID generates ids on create. When false callers supply the id.
	UUID bool

	// Equality selects loose or strict comparison for $eq/$in/unique.
	Equality types.Equality

	// Timestamps is nil when timestamps are disabled.
	Timestamps *Timestamps

	// TypeDefaults overrides the registry zero value per type.
	TypeDefaults map[types.Type]ir.Value

	// Force strips undeclared fields from stored records.
	Force bool
}

// DefaultOptions returns uuid on, loose equality, stock timestamps and
// forced schemas.
func DefaultOptions() Options {
	ts := DefaultTimestamps()
	return Options{
		UUID:       true,
		Equality:   types.Loose,
		Timestamps: &ts,
		Force:      true,
	}
}

// Option mutates Options during New.
type Option func(*Options)

// WithUUID toggles generated ids.
func WithUUID(enabled bool) Option {
	return func(o *Options) { o.UUID = enabled }
}

// WithEquality selects the equality strategy.
func WithEquality(e types.Equality) Option {
	return func(o *Options) { o.Equality = e }
}

// WithTimestamps sets the timestamp field names.
func WithTimestamps(ts Timestamps) Option {
	return func(o *Options) { o.Timestamps = &ts }
}

// WithoutTimestamps disables created, modified and deleted stamps.
func WithoutTimestamps() Option {
	return func(o *Options) { o.Timestamps = nil }
}

// WithTypeDefault overrides the zero value used for t.
func WithTypeDefault(t types.Type, v ir.Value) Option {
	return func(o *Options) {
		if o.TypeDefaults == nil {
			o.TypeDefaults = make(map[types.Type]ir.Value)
		}
		o.TypeDefaults[t] = v
	}
}

// WithForce toggles stripping of undeclared fields.
func WithForce(force bool) Option {
	return func(o *Options) { o.Force = force }
}
