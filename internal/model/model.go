package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/query"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/types"
	"github.com/roach88/docket/internal/validate"
)

// Model binds a schema to a name and a DB. Every operation blocks until
// the store confirms the write or ctx ends.
type Model struct {
	db        *DB
	name      string
	schema    *schema.Schema
	eval      *query.Evaluator
	validator *validate.Validator
	logger    *slog.Logger
}

func newModel(db *DB, name string, s *schema.Schema) *Model {
	m := &Model{
		db:     db,
		name:   name,
		schema: s,
		eval:   query.NewEvaluator(s.Equality()),
		logger: db.logger.With("model", name),
	}
	m.validator = validate.New(s, uniqueScan{m: m})
	return m
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Schema returns the model schema.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// Key returns the store key of the record with id.
func (m *Model) Key(id string) string {
	return id + "-" + m.name
}

// Owns reports whether a store key belongs to this model.
func (m *Model) Owns(key string) bool {
	i := strings.LastIndex(key, "-")
	return i > 0 && key[i+1:] == m.name
}

// FindOption adjusts a scan.
type FindOption func(*findOptions)

type findOptions struct {
	includeDeleted bool
	limit          int
}

// IncludeDeleted keeps soft-deleted records in the result.
func IncludeDeleted() FindOption {
	return func(o *findOptions) { o.includeDeleted = true }
}

// Limit stops the scan after n matches. n <= 0 means no limit.
func Limit(n int) FindOption {
	return func(o *findOptions) { o.limit = n }
}

// Find returns the typed rows matching q, in key order. q is anything
// query.Parse accepts; a nil q yields no rows.
func (m *Model) Find(ctx context.Context, q any, opts ...FindOption) ([]ir.Object, error) {
	start := time.Now()
	rows, err := m.find(ctx, q, opts...)
	m.observe("find", err, start)
	return rows, err
}

func (m *Model) find(ctx context.Context, q any, opts ...FindOption) ([]ir.Object, error) {
	node, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	return m.scan(ctx, node, opts...)
}

// scan implements the full-store scan: keep this model's keys, cast the
// declared fields, drop soft-deleted rows unless asked for, then match.
func (m *Model) scan(ctx context.Context, node query.Node, opts ...FindOption) ([]ir.Object, error) {
	if node == nil {
		return []ir.Object{}, nil
	}

	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	if deleted := m.schema.DeletedField(); deleted != "" && query.References(node, deleted) {
		o.includeDeleted = true
	}

	var (
		out     = []ir.Object{}
		scanned int
		scanErr error
	)
	m.db.kv.ForEach(func(key string, raw ir.Object) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		if !m.Owns(key) {
			return true
		}
		scanned++

		rec := m.schema.CastRecord(raw)
		if !o.includeDeleted && m.schema.IsDeleted(rec) {
			return true
		}
		if m.eval.Match(node, rec) {
			out = append(out, rec)
		}
		return o.limit <= 0 || len(out) < o.limit
	})
	if scanErr != nil {
		return nil, scanErr
	}

	m.db.observer.ObserveScan(m.name, scanned, len(out))
	m.logger.Debug("scan", "query", query.String(node), "scanned", scanned, "matched", len(out))
	return out, nil
}

// FindOne returns the first record matching q. A string q is an id.
// Zero matches is a NOT_FOUND error.
func (m *Model) FindOne(ctx context.Context, q any, opts ...FindOption) (*Instance, error) {
	start := time.Now()
	inst, err := m.findOne(ctx, q, opts...)
	m.observe("find_one", err, start)
	return inst, err
}

func (m *Model) findOne(ctx context.Context, q any, opts ...FindOption) (*Instance, error) {
	q = where(q)
	rec, err := m.locate(ctx, q, opts...)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, NewNotFoundError(m.name, describe(q))
	}
	return m.instance(rec), nil
}

// locate returns the first match of q, or nil.
func (m *Model) locate(ctx context.Context, q any, opts ...FindOption) (ir.Object, error) {
	node, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	rows, err := m.scan(ctx, node, append(opts, Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Create inserts rec.
//
// Steps: strip undeclared fields (forced schemas), fill defaults, assign
// the id, stamp created/modified, validate, cast, run beforeCreate,
// persist, run afterCreate. Validation failures return validate.Errors and
// nothing is written.
func (m *Model) Create(ctx context.Context, rec ir.Object) (*Instance, error) {
	start := time.Now()
	inst, err := m.create(ctx, rec)
	m.observe("create", err, start)
	return inst, err
}

func (m *Model) create(ctx context.Context, rec ir.Object) (*Instance, error) {
	candidate := m.schema.Strip(rec)
	if candidate == nil {
		candidate = ir.Object{}
	}
	for k, v := range m.schema.Defaults() {
		if !candidate.Has(k) {
			candidate[k] = v
		}
	}

	id, err := m.assignID(candidate)
	if err != nil {
		return nil, err
	}
	if _, taken := m.db.kv.Get(m.Key(id)); taken {
		return nil, &Error{
			Code:    ErrCodeDuplicateID,
			Model:   m.name,
			Message: fmt.Sprintf("a record with id %q already exists", id),
		}
	}
	candidate[schema.IDField] = ir.Text(id)

	now := ir.NewTime(m.db.clock.Now())
	if f := m.schema.CreatedField(); f != "" {
		candidate[f] = now
	}
	if f := m.schema.ModifiedField(); f != "" {
		candidate[f] = now
	}
	if f := m.schema.DeletedField(); f != "" {
		delete(candidate, f)
	}

	if err := m.validate(ctx, candidate, id); err != nil {
		return nil, err
	}

	out := m.schema.CastRecord(candidate)
	if err := m.schema.RunHooks(ctx, schema.BeforeCreate, out); err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, err)
	}
	out = m.schema.CastRecord(out)
	out[schema.IDField] = ir.Text(id)

	if err := m.put(ctx, "create", id, out); err != nil {
		return nil, err
	}
	m.logger.Info("record created", "id", id)

	if err := m.schema.RunHooks(ctx, schema.AfterCreate, out.Clone()); err != nil {
		return nil, fmt.Errorf("create %s: %w", m.name, err)
	}
	return m.instance(out), nil
}

// assignID picks the id for a new record: a caller-supplied id wins,
// otherwise one is generated when the schema uses uuids.
func (m *Model) assignID(candidate ir.Object) (string, error) {
	if v, ok := candidate[schema.IDField]; ok {
		if id, ok := types.TextOf(v); ok && id != "" {
			return id, nil
		}
	}
	if m.schema.Options().UUID {
		return m.db.ids.Generate(), nil
	}
	return "", &Error{
		Code:    ErrCodeMissingID,
		Model:   m.name,
		Message: "schema does not generate ids and the record has none",
	}
}

// Update merges patch into the first record matching q. A string q is an
// id. The id and timestamp fields of patch are ignored.
//
// The patch is validated before the target is required to exist, so a
// bad patch reports validation errors even when nothing matches.
func (m *Model) Update(ctx context.Context, patch ir.Object, q any) (*Instance, error) {
	start := time.Now()
	inst, err := m.update(ctx, patch, q)
	m.observe("update", err, start)
	return inst, err
}

func (m *Model) update(ctx context.Context, patch ir.Object, q any) (*Instance, error) {
	q = where(q)
	target, err := m.locate(ctx, q)
	if err != nil {
		return nil, err
	}

	changes := m.schema.Strip(patch)
	for k := range changes {
		if m.schema.IsBookkeeping(k) {
			delete(changes, k)
		}
	}

	var self string
	if target != nil {
		self, _ = types.TextOf(target.Get(schema.IDField))
	}
	if err := m.validate(ctx, changes, self); err != nil {
		return nil, err
	}
	if target == nil {
		return nil, NewNotFoundError(m.name, describe(q))
	}

	merged := target.Merge(changes)
	if f := m.schema.ModifiedField(); f != "" {
		merged[f] = ir.NewTime(m.db.clock.Now())
	}
	out := m.schema.CastRecord(merged)

	if err := m.schema.RunHooks(ctx, schema.BeforeUpdate, out); err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	out = m.schema.CastRecord(out)
	out[schema.IDField] = ir.Text(self)

	if err := m.put(ctx, "update", self, out); err != nil {
		return nil, err
	}
	m.logger.Info("record updated", "id", self, "fields", len(changes))

	if err := m.schema.RunHooks(ctx, schema.AfterUpdate, out.Clone()); err != nil {
		return nil, fmt.Errorf("update %s: %w", m.name, err)
	}
	return m.instance(out), nil
}

// UpdateOrCreate updates the first record matching q, or creates rec when
// nothing matches. When q is a string id and rec has no id, the new record
// takes that id.
func (m *Model) UpdateOrCreate(ctx context.Context, rec ir.Object, q any) (*Instance, error) {
	start := time.Now()
	inst, err := m.updateOrCreate(ctx, rec, q)
	m.observe("update_or_create", err, start)
	return inst, err
}

func (m *Model) updateOrCreate(ctx context.Context, rec ir.Object, q any) (*Instance, error) {
	target, err := m.locate(ctx, where(q))
	if err != nil {
		return nil, err
	}
	if target != nil {
		id, _ := types.TextOf(target.Get(schema.IDField))
		return m.update(ctx, rec, id)
	}

	if id, ok := idShorthand(q); ok && !rec.Has(schema.IDField) {
		rec = rec.Clone()
		if rec == nil {
			rec = ir.Object{}
		}
		rec[schema.IDField] = ir.Text(id)
	}
	return m.create(ctx, rec)
}

// Destroy deletes the first record matching q. A string q is an id.
// Soft-delete schemas stamp the deleted field and keep the row; others
// remove it. The returned instance is the record as destroyed.
func (m *Model) Destroy(ctx context.Context, q any) (*Instance, error) {
	start := time.Now()
	inst, err := m.destroy(ctx, q)
	m.observe("destroy", err, start)
	return inst, err
}

func (m *Model) destroy(ctx context.Context, q any) (*Instance, error) {
	q = where(q)
	target, err := m.locate(ctx, q)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, NewNotFoundError(m.name, describe(q))
	}
	id, _ := types.TextOf(target.Get(schema.IDField))

	if err := m.schema.RunHooks(ctx, schema.BeforeDestroy, target.Clone()); err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}

	if f := m.schema.DeletedField(); f != "" {
		target[f] = ir.NewTime(m.db.clock.Now())
		if err := m.put(ctx, "destroy", id, target); err != nil {
			return nil, err
		}
		m.logger.Info("record soft-deleted", "id", id)
	} else {
		key := m.Key(id)
		err := await(ctx, func(done func(error)) { m.db.kv.Remove(key, done) })
		if err != nil {
			return nil, storeError(m.name, "destroy", err)
		}
		m.logger.Info("record removed", "id", id)
	}

	if err := m.schema.RunHooks(ctx, schema.AfterDestroy, target.Clone()); err != nil {
		return nil, fmt.Errorf("destroy %s: %w", m.name, err)
	}
	return m.instance(target), nil
}

// DestroyAll removes every row of this model, soft-deleted rows included,
// and returns how many were removed. It only runs in the development
// environment; elsewhere it returns a GUARDED error and removes nothing.
func (m *Model) DestroyAll(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := m.destroyAll(ctx)
	m.observe("destroy_all", err, start)
	return n, err
}

func (m *Model) destroyAll(ctx context.Context) (int, error) {
	if !m.db.Development() {
		m.logger.Warn("destroy all refused", "env", m.db.env)
		return 0, NewGuardedError(m.name, "destroyAll", m.db.env)
	}

	var keys []string
	m.db.kv.ForEach(func(key string, _ ir.Object) bool {
		if m.Owns(key) {
			keys = append(keys, key)
		}
		return true
	})
	if err := removeAll(ctx, m.db.kv, keys); err != nil {
		return 0, storeError(m.name, "destroyAll", err)
	}
	m.logger.Info("records destroyed", "count", len(keys))
	return len(keys), nil
}

// Count returns the number of records matching q.
func (m *Model) Count(ctx context.Context, q any, opts ...FindOption) (int, error) {
	rows, err := m.Find(ctx, q, opts...)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Wrap materializes a stored record as an Instance.
func (m *Model) Wrap(rec ir.Object) *Instance {
	return m.instance(m.schema.CastRecord(rec))
}

func (m *Model) instance(rec ir.Object) *Instance {
	return &Instance{model: m, rec: rec.Clone()}
}

func (m *Model) validate(ctx context.Context, candidate ir.Object, self string) error {
	errs, err := m.validator.Run(ctx, candidate, self)
	if err != nil {
		return storeError(m.name, "validate", err)
	}
	if errs != nil {
		m.logger.Debug("validation failed", "fields", errs.Fields())
		return errs
	}
	return nil
}

// put writes rec under id and waits for the commit.
func (m *Model) put(ctx context.Context, op, id string, rec ir.Object) error {
	key := m.Key(id)
	err := await(ctx, func(done func(error)) { m.db.kv.Set(key, rec, done) })
	if err != nil {
		return storeError(m.name, op, err)
	}
	return nil
}

func (m *Model) observe(op string, err error, start time.Time) {
	outcome := Outcome(err)
	m.db.observer.ObserveOperation(m.name, op, outcome, time.Since(start))
	if err != nil && outcome != "validation" && outcome != "not_found" {
		m.logger.Error("operation failed", "op", op, "error", err)
	}
}

// where rewrites the id shorthand: a string query means {id: q}.
func where(q any) any {
	if id, ok := idShorthand(q); ok {
		return map[string]any{schema.IDField: id}
	}
	return q
}

// idShorthand reports whether q is a bare id rather than a predicate.
func idShorthand(q any) (string, bool) {
	switch v := q.(type) {
	case string:
		return v, true
	case ir.Text:
		return string(v), true
	default:
		return "", false
	}
}

func describe(q any) string {
	node, err := query.Parse(q)
	if err != nil || node == nil {
		return fmt.Sprintf("%v", q)
	}
	return query.String(node)
}

// uniqueScan checks unique constraints by scanning the model's live rows
// with $eq semantics.
type uniqueScan struct {
	m *Model
}

func (u uniqueScan) Unique(ctx context.Context, field string, value ir.Value, self string) (bool, error) {
	m := u.m
	f, ok := m.schema.Field(field)
	if !ok {
		return true, nil
	}

	unique := true
	var scanErr error
	m.db.kv.ForEach(func(key string, raw ir.Object) bool {
		if err := ctx.Err(); err != nil {
			scanErr = err
			return false
		}
		if !m.Owns(key) {
			return true
		}
		if id, _ := types.TextOf(raw.Get(schema.IDField)); self != "" && id == self {
			return true
		}
		if m.schema.IsDeleted(m.schema.CastRecord(raw)) {
			return true
		}
		existing := types.Cast(f.Type, raw.Get(field))
		if m.eval.Compare(query.OpEq, existing, value) {
			unique = false
			return false
		}
		return true
	})
	if scanErr != nil {
		return false, scanErr
	}
	return unique, nil
}
