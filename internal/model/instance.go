package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/types"
)

// Instance is a stored record with its model attached. Instances are
// snapshots: later writes to the store do not change them.
type Instance struct {
	model *Model
	rec   ir.Object
}

// Model returns the model the record belongs to.
func (i *Instance) Model() *Model {
	return i.model
}

// ID returns the record id.
func (i *Instance) ID() string {
	id, _ := types.TextOf(i.rec.Get(schema.IDField))
	return id
}

// Get returns a field, falling back to a virtual of the same name, then
// to Null.
func (i *Instance) Get(name string) ir.Value {
	if v, ok := i.rec[name]; ok && v != nil {
		return v
	}
	if v, ok := i.Virtual(name); ok {
		return v
	}
	return ir.Null{}
}

// Virtual computes the named virtual against the record.
func (i *Instance) Virtual(name string) (ir.Value, bool) {
	fn, ok := i.model.schema.Virtual(name)
	if !ok {
		return nil, false
	}
	v := fn(i.rec.Clone())
	if v == nil {
		v = ir.Null{}
	}
	return v, true
}

// Deleted reports whether the record carries a soft-delete stamp.
func (i *Instance) Deleted() bool {
	return i.model.schema.IsDeleted(i.rec)
}

// Record returns a copy of every stored field, bookkeeping included.
func (i *Instance) Record() ir.Object {
	return i.rec.Clone()
}

// ToObject returns the public fields: everything except the id and the
// timestamp fields.
func (i *Instance) ToObject() ir.Object {
	out := make(ir.Object, len(i.rec))
	for k, v := range i.rec {
		if i.model.schema.IsBookkeeping(k) {
			continue
		}
		out[k] = ir.Clone(v)
	}
	return out
}

// View returns the public fields plus every virtual.
func (i *Instance) View() ir.Object {
	out := i.ToObject()
	for _, name := range i.model.schema.Virtuals() {
		if v, ok := i.Virtual(name); ok {
			out[name] = v
		}
	}
	return out
}

// Serialize renders View as canonical JSON.
func (i *Instance) Serialize() ([]byte, error) {
	data, err := ir.MarshalCanonical(i.View())
	if err != nil {
		return nil, fmt.Errorf("serialize %s %s: %w", i.model.name, i.ID(), err)
	}
	return data, nil
}

// MarshalJSON implements json.Marshaler using Serialize.
func (i *Instance) MarshalJSON() ([]byte, error) {
	return i.Serialize()
}

// Update applies patch to this record through the model.
func (i *Instance) Update(ctx context.Context, patch ir.Object) (*Instance, error) {
	return i.model.Update(ctx, patch, i.ID())
}

// Destroy destroys this record through the model.
func (i *Instance) Destroy(ctx context.Context) (*Instance, error) {
	return i.model.Destroy(ctx, i.ID())
}

var _ json.Marshaler = (*Instance)(nil)
