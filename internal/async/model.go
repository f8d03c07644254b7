package async

import (
	"context"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
)

// Model exposes a model's operations in callback form.
type Model struct {
	d *Dispatcher
	m *model.Model
}

// Bind returns the callback form of m, running on d.
func Bind(d *Dispatcher, m *model.Model) *Model {
	return &Model{d: d, m: m}
}

// Find calls cb with the matched rows.
func (a *Model) Find(q any, cb func([]ir.Object, error), opts ...model.FindOption) {
	Go(a.d, a.m.Name()+".find", func(ctx context.Context) ([]ir.Object, error) {
		return a.m.Find(ctx, q, opts...)
	}, cb)
}

// FindOne calls cb with the first match. q is a query.M or an id.
func (a *Model) FindOne(q any, cb func(*model.Instance, error)) {
	Go(a.d, a.m.Name()+".find_one", func(ctx context.Context) (*model.Instance, error) {
		return a.m.FindOne(ctx, q)
	}, cb)
}

// Create calls cb with the stored instance.
func (a *Model) Create(rec ir.Object, cb func(*model.Instance, error)) {
	Go(a.d, a.m.Name()+".create", func(ctx context.Context) (*model.Instance, error) {
		return a.m.Create(ctx, rec)
	}, cb)
}

// Update calls cb with the updated instance.
func (a *Model) Update(patch ir.Object, q any, cb func(*model.Instance, error)) {
	Go(a.d, a.m.Name()+".update", func(ctx context.Context) (*model.Instance, error) {
		return a.m.Update(ctx, patch, q)
	}, cb)
}

// UpdateOrCreate calls cb with the updated or created instance.
func (a *Model) UpdateOrCreate(rec ir.Object, q any, cb func(*model.Instance, error)) {
	Go(a.d, a.m.Name()+".update_or_create", func(ctx context.Context) (*model.Instance, error) {
		return a.m.UpdateOrCreate(ctx, rec, q)
	}, cb)
}

// Destroy calls cb with the destroyed instance.
func (a *Model) Destroy(q any, cb func(*model.Instance, error)) {
	Go(a.d, a.m.Name()+".destroy", func(ctx context.Context) (*model.Instance, error) {
		return a.m.Destroy(ctx, q)
	}, cb)
}

// DestroyAll calls cb with the number of removed rows.
func (a *Model) DestroyAll(cb func(int, error)) {
	Go(a.d, a.m.Name()+".destroy_all", func(ctx context.Context) (int, error) {
		return a.m.DestroyAll(ctx)
	}, cb)
}
