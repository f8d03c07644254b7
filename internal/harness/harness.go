package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/docket/internal/compiler"
	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/store"
	"github.com/roach88/docket/internal/testutil"
	"github.com/roach88/docket/internal/validate"
)

// ClockStep is how far the scenario clock advances per timestamp taken.
const ClockStep = time.Second

// IDPrefix prefixes generated scenario ids: "rec-0001", "rec-0002", ...
const IDPrefix = "rec"

// Harness executes scenario steps against a private database.
type Harness struct {
	db     *model.DB
	seq    int64
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store, with a fake clock and a
// sequential id generator so traces are reproducible.
//
// Execution flow:
// 1. Compile the CUE schemas and register their models
// 2. Execute setup steps, which must all succeed
// 3. Execute flow steps, checking expect clauses
// 4. Evaluate assertions and capture the final state
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	specs, err := compileSchemas(scenario.Schemas)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := store.CodecByName(scenario.Codec)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, store.MemoryPath, store.WithCodec(codec), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	env := scenario.Env
	if env == "" {
		env = model.EnvDevelopment
	}
	db := model.NewDB(st,
		model.WithEnvironment(env),
		model.WithLogger(logger),
		model.WithClock(testutil.NewFakeClock(testutil.Epoch, ClockStep)),
		model.WithIDGenerator(testutil.NewSequenceGenerator(IDPrefix)),
	)
	defer db.Close()

	for _, spec := range specs {
		if _, err := db.Model(spec.Name, spec.Schema); err != nil {
			return nil, fmt.Errorf("failed to register model %s: %w", spec.Name, err)
		}
	}

	h := &Harness{db: db, logger: logger}
	result := NewResult()

	for i, step := range scenario.Setup {
		event, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}
		result.AddTrace(event)
		if event.Outcome != "ok" {
			return nil, fmt.Errorf("setup[%d]: %s failed with %s: %s", i, event.Label(), event.Outcome, event.Message)
		}
	}

	for i, step := range scenario.Flow {
		event, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		result.AddTrace(event)
		for _, msg := range checkExpect(step.Expect, event) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, event.Label(), msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, db) {
		result.AddError(msg)
	}

	if err := captureState(ctx, db, result); err != nil {
		return nil, err
	}
	return result, nil
}

// compileSchemas compiles each CUE file and checks the combined models.
func compileSchemas(paths []string) ([]compiler.ModelSpec, error) {
	var specs []compiler.ModelSpec
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", p, err)
		}
		res, errs := compiler.CompileString(p, string(src))
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to compile %s: %w", p, errors.Join(errs...))
		}
		specs = append(specs, res.Models...)
	}

	if verrs := compiler.Validate(specs); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i := range verrs {
			errs[i] = verrs[i]
		}
		return nil, fmt.Errorf("invalid schemas: %w", errors.Join(errs...))
	}
	return specs, nil
}

// execute runs one step. Operation failures are recorded on the event;
// the returned error is reserved for steps the harness cannot run.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	m, ok := h.db.Lookup(step.Model)
	if !ok {
		return TraceEvent{}, fmt.Errorf("unknown model %q", step.Model)
	}

	h.seq++
	event := TraceEvent{
		Seq:   h.seq,
		Model: step.Model,
		Op:    step.Op,
		Args:  ir.Object{},
	}

	var rec ir.Object
	if step.Record != nil {
		obj, err := ir.ObjectFrom(step.Record)
		if err != nil {
			return TraceEvent{}, fmt.Errorf("record: %w", err)
		}
		rec = m.Schema().Materialize(obj)
		event.Args["record"] = rec
	}

	where := step.Where
	if where != nil {
		w, err := ir.FromAny(where)
		if err != nil {
			return TraceEvent{}, fmt.Errorf("where: %w", err)
		}
		event.Args["where"] = w
	} else if step.Op == OpFind || step.Op == OpCount {
		where = map[string]any{}
	}

	var (
		inst *model.Instance
		err  error
	)
	switch step.Op {
	case OpCreate:
		inst, err = m.Create(ctx, rec)
	case OpFindOne:
		inst, err = m.FindOne(ctx, where)
	case OpUpdate:
		inst, err = m.Update(ctx, rec, where)
	case OpUpdateOrCreate:
		inst, err = m.UpdateOrCreate(ctx, rec, where)
	case OpDestroy:
		inst, err = m.Destroy(ctx, where)
	case OpFind:
		var rows []ir.Object
		if rows, err = m.Find(ctx, where); err == nil {
			list := make(ir.List, len(rows))
			for i, r := range rows {
				list[i] = r
			}
			event.Result = list
		}
	case OpCount:
		var n int
		if n, err = m.Count(ctx, where); err == nil {
			event.Result = ir.Number(n)
		}
	case OpDestroyAll:
		var n int
		if n, err = m.DestroyAll(ctx); err == nil {
			event.Result = ir.Number(n)
		}
	default:
		return TraceEvent{}, fmt.Errorf("unknown op %q", step.Op)
	}

	if inst != nil {
		event.Result = inst.Record()
	}
	event.Outcome = model.Outcome(err)
	if verrs, ok := validate.AsErrors(err); ok {
		event.Errors = make(map[string][]string, len(verrs))
		for field, list := range verrs {
			for _, e := range list {
				event.Errors[field] = append(event.Errors[field], string(e.Kind))
			}
		}
	} else if err != nil {
		event.Message = err.Error()
	}

	h.logger.Debug("step executed", "op", event.Label(), "outcome", event.Outcome)
	return event, nil
}

// checkExpect compares an event against its expect clause. A nil clause
// expects success.
func checkExpect(expect *ExpectClause, event TraceEvent) []string {
	if expect == nil {
		if event.Outcome != "ok" {
			return []string{fmt.Sprintf("expected outcome ok, got %s (%s)", event.Outcome, describeFailure(event))}
		}
		return nil
	}

	var msgs []string
	if event.Outcome != expect.Outcome {
		msgs = append(msgs, fmt.Sprintf("expected outcome %s, got %s (%s)", expect.Outcome, event.Outcome, describeFailure(event)))
	}

	if expect.Count != nil {
		n, ok := event.count()
		if !ok || n != *expect.Count {
			msgs = append(msgs, fmt.Sprintf("expected count %d, got %d", *expect.Count, n))
		}
	}

	if len(expect.Record) > 0 {
		rec, ok := event.first()
		if !ok {
			msgs = append(msgs, "expected a record, got none")
		} else if diff := matchSubset(rec, expect.Record); diff != "" {
			msgs = append(msgs, "record mismatch: "+diff)
		}
	}

	for field, kinds := range expect.Errors {
		for _, kind := range kinds {
			if !containsKind(event.Errors[field], kind) {
				msgs = append(msgs, fmt.Sprintf("expected %s error on %s, got %v", kind, field, event.Errors[field]))
			}
		}
	}
	return msgs
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func describeFailure(event TraceEvent) string {
	if len(event.Errors) > 0 {
		return fmt.Sprintf("errors %v", event.Errors)
	}
	if event.Message != "" {
		return event.Message
	}
	return "no error"
}

// captureState records every live row of each model.
func captureState(ctx context.Context, db *model.DB, result *Result) error {
	for _, name := range db.Models() {
		m, _ := db.Lookup(name)
		rows, err := m.Find(ctx, map[string]any{})
		if err != nil {
			return fmt.Errorf("failed to capture state of %s: %w", name, err)
		}
		result.State[name] = rows
	}
	return nil
}
