package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/schema"
	"github.com/roach88/docket/internal/store"
	"github.com/roach88/docket/internal/testutil"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Model: "person", Op: OpCreate, Outcome: "ok"},
		{Seq: 2, Model: "person", Op: OpCreate, Outcome: "validation"},
		{Seq: 3, Model: "person", Op: OpUpdate, Outcome: "ok"},
		{Seq: 4, Model: "person", Op: OpDestroy, Outcome: "not_found"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Model: "person", Op: OpUpdate}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Model: "person", Op: OpCreate, Outcome: "validation"}))

	err := assertTraceContains(trace, Assertion{Model: "person", Op: OpDestroy, Outcome: "ok"})
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "person.destroy with outcome ok", ae.Expected)
	assert.Equal(t, "not found in trace", ae.Actual)
	assert.Contains(t, err.Error(), "[4] person.destroy -> not_found")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{"person.create", "person.destroy"}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{"person.update", "person.create"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "person.update (pos 3) should be before person.create (pos 1)")

	err = assertTraceOrder(trace, Assertion{Ops: []string{"person.create", "person.find"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing operation: person.find")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Model: "person", Op: OpCreate, Count: intp(2)}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Model: "person", Op: OpFind, Count: intp(0)}))

	err := assertTraceCount(trace, Assertion{Model: "person", Op: OpUpdate, Count: intp(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 occurrences of person.update")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func newStateDB(t *testing.T) *model.DB {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.MemoryPath)
	require.NoError(t, err)
	db := model.NewDB(st,
		model.WithEnvironment(model.EnvDevelopment),
		model.WithClock(testutil.NewFakeClock(testutil.Epoch, ClockStep)),
		model.WithIDGenerator(testutil.NewSequenceGenerator(IDPrefix)),
	)
	t.Cleanup(func() { db.Close() })

	s, err := schema.New([]schema.Decl{
		schema.Typed("name", "text"),
		schema.Typed("age", "number"),
	})
	require.NoError(t, err)
	m, err := db.Model("person", s)
	require.NoError(t, err)

	for _, rec := range []ir.Object{
		{"name": ir.Text("Ada"), "age": ir.Number(36)},
		{"name": ir.Text("Linus"), "age": ir.Number(54)},
	} {
		_, err := m.Create(ctx, rec)
		require.NoError(t, err)
	}
	return db
}

func TestAssertFinalState(t *testing.T) {
	db := newStateDB(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		a       Assertion
		wantErr string
	}{
		{
			name: "count all",
			a:    Assertion{Model: "person", Count: intp(2)},
		},
		{
			name: "subset match",
			a:    Assertion{Model: "person", Where: map[string]any{"name": "Ada"}, Expect: map[string]any{"age": 36, "id": "rec-0001"}},
		},
		{
			name: "loose match on text number",
			a:    Assertion{Model: "person", Where: map[string]any{"name": "Linus"}, Expect: map[string]any{"age": "54"}},
		},
		{
			name: "timestamp as text",
			a:    Assertion{Model: "person", Where: map[string]any{"name": "Linus"}, Expect: map[string]any{"created": "2024-01-01T00:00:01Z"}},
		},
		{
			name:    "wrong count",
			a:       Assertion{Model: "person", Where: map[string]any{"age": map[string]any{"$gt": 40}}, Count: intp(2)},
			wantErr: "1 rows",
		},
		{
			name:    "no row",
			a:       Assertion{Model: "person", Where: map[string]any{"name": "Grace"}, Expect: map[string]any{"age": 1}},
			wantErr: "row not found",
		},
		{
			name:    "field mismatch",
			a:       Assertion{Model: "person", Where: map[string]any{"name": "Ada"}, Expect: map[string]any{"age": 40}},
			wantErr: `field "age" = 36, want 40`,
		},
		{
			name:    "missing field",
			a:       Assertion{Model: "person", Where: map[string]any{"name": "Ada"}, Expect: map[string]any{"email": "a@b"}},
			wantErr: `field "email" not present`,
		},
		{
			name:    "unknown model",
			a:       Assertion{Model: "ghost", Count: intp(0)},
			wantErr: `unknown model "ghost"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(ctx, db, tt.a)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(context.Background(), result, []Assertion{
		{Type: AssertTraceContains, Model: "person", Op: OpUpdate},
		{Type: AssertTraceCount, Model: "person", Op: OpUpdate, Count: intp(5)},
		{Type: AssertFinalState, Model: "person", Count: intp(0)},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], "final_state requires a database")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}

func TestMatchSubset_NullMatchesAbsent(t *testing.T) {
	rec := ir.Object{"name": ir.Text("Ada")}
	assert.Empty(t, matchSubset(rec, map[string]any{"deleted": nil}))
	assert.Empty(t, matchSubset(rec, map[string]any{"name": "Ada"}))
	assert.NotEmpty(t, matchSubset(rec, map[string]any{"name": "Grace"}))
}
