package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/types"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Seq, event.Label(), event.Outcome)
		}
	}
	return buf.String()
}

// assertTraceContains checks that the trace holds the named operation,
// optionally with the given outcome.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	label := a.Model + "." + a.Op
	for _, event := range trace {
		if event.Label() != label {
			continue
		}
		if a.Outcome == "" || event.Outcome == a.Outcome {
			return nil
		}
	}

	expected := label
	if a.Outcome != "" {
		expected = fmt.Sprintf("%s with outcome %s", label, a.Outcome)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that operations first appear in the given
// order. Intervening operations are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Label()]; !seen {
			positions[event.Label()] = i + 1
		}
	}

	for _, label := range a.Ops {
		if positions[label] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all operations present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing operation: %s", label),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("operations in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the operation appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	label := a.Model + "." + a.Op
	count := 0
	for _, event := range trace {
		if event.Label() == label {
			count++
		}
	}

	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, label),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState queries the model and checks the row count and the
// fields of the first matching row.
func assertFinalState(ctx context.Context, db *model.DB, a Assertion) error {
	m, ok := db.Lookup(a.Model)
	if !ok {
		return fmt.Errorf("final_state: unknown model %q", a.Model)
	}

	where := a.Where
	if where == nil {
		where = map[string]any{}
	}
	rows, err := m.Find(ctx, where)
	if err != nil {
		return fmt.Errorf("final_state: query %s: %w", a.Model, err)
	}

	if a.Count != nil && len(rows) != *a.Count {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%d rows in %s where %s", *a.Count, a.Model, formatWhere(where)),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}

	if len(a.Expect) == 0 {
		return nil
	}
	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Model, formatWhere(where)),
			Actual:   "row not found",
		}
	}
	if diff := matchSubset(rows[0], a.Expect); diff != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s matching %v", a.Model, a.Expect),
			Actual:   diff,
		}
	}
	return nil
}

// formatWhere renders a query for messages.
func formatWhere(where any) string {
	data, err := ir.MarshalCanonical(where)
	if err != nil {
		return fmt.Sprintf("%v", where)
	}
	return string(data)
}

// matchSubset checks every expected key against actual using loose
// equality, so 30 matches 30.0 and RFC 3339 text matches a time. It
// returns a description of the first mismatch, or "".
func matchSubset(actual ir.Object, expected map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := ir.FromAny(expected[k])
		if err != nil {
			return fmt.Sprintf("field %q: %v", k, err)
		}
		got, exists := actual[k]
		if !exists {
			if _, null := want.(ir.Null); null {
				continue
			}
			return fmt.Sprintf("field %q not present", k)
		}
		if !types.LooseEqual(want, got) {
			return fmt.Sprintf("field %q = %s, want %s", k, formatWhere(got), formatWhere(want))
		}
	}
	return ""
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, db *model.DB) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			if db == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a database", i)
			} else {
				err = assertFinalState(ctx, db, a)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
