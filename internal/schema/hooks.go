package schema

import (
	"context"
	"fmt"

	"github.com/roach88/docket/internal/ir"
)

// Event names a lifecycle transition a hook can observe.
type Event string

const (
	BeforeCreate  Event = "beforeCreate"
	AfterCreate   Event = "afterCreate"
	BeforeUpdate  Event = "beforeUpdate"
	AfterUpdate   Event = "afterUpdate"
	BeforeDestroy Event = "beforeDestroy"
	AfterDestroy  Event = "afterDestroy"
)

var events = []Event{BeforeCreate, AfterCreate, BeforeUpdate, AfterUpdate, BeforeDestroy, AfterDestroy}

func (e Event) valid() bool {
	for _, known := range events {
		if e == known {
			return true
		}
	}
	return false
}

// Hook observes a record at a lifecycle transition. Before-hooks may edit
// rec in place and abort the operation by returning an error; after-hook
// errors are reported to the caller once the write has landed.
type Hook func(ctx context.Context, rec ir.Object) error

// RunHooks invokes every hook registered for event in registration order,
// stopping at the first error.
func (s *Schema) RunHooks(ctx context.Context, event Event, rec ir.Object) error {
	for i, h := range s.hooks[event] {
		if err := h(ctx, rec); err != nil {
			return fmt.Errorf("%s hook %d: %w", event, i, err)
		}
	}
	return nil
}

// HasHooks reports whether any hook is registered for event.
func (s *Schema) HasHooks(event Event) bool {
	return len(s.hooks[event]) > 0
}
