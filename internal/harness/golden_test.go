package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/docket/internal/ir"
)

func TestRunWithGolden_PersonLifecycle(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "person_lifecycle.yaml"))
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_PersonLifecycle -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{
		Seq:     1,
		Model:   "person",
		Op:      OpCreate,
		Outcome: "validation",
		Args:    ir.Object{"record": ir.Object{"name": ir.Text("")}},
		Errors:  map[string][]string{"name": {"required"}},
	})
	result.State["person"] = []ir.Object{}

	data, err := Snapshot("tiny", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","state":{"person":[]},"trace":[{"args":{"record":{"name":""}},"errors":{"name":["required"]},"model":"person","op":"create","outcome":"validation","seq":1}]}`,
		string(data))
}

func TestSnapshot_OmitsEmptyParts(t *testing.T) {
	result := NewResult()
	result.AddTrace(TraceEvent{Seq: 1, Model: "person", Op: OpCount, Outcome: "ok", Args: ir.Object{}, Result: ir.Number(0)})

	data, err := Snapshot("counts", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"counts","state":{},"trace":[{"model":"person","op":"count","outcome":"ok","result":0,"seq":1}]}`,
		string(data))
}
