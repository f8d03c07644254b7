package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/docket/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot renders a scenario result as canonical JSON: the scenario
// name, the full trace and the final state of every model.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.List, len(result.Trace))
	for i, event := range result.Trace {
		trace[i] = event.canonical()
	}

	state := make(ir.Object, len(result.State))
	for name, rows := range result.State {
		list := make(ir.List, len(rows))
		for i, row := range rows {
			list[i] = row
		}
		state[name] = list
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario_name": ir.Text(name),
		"trace":         trace,
		"state":         state,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
