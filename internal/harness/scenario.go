package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/store"
)

// Scenario defines a conformance scenario: models compiled from CUE
// schemas, a flow of operations with expected outcomes, and assertions on
// the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE files declaring the models under test.
	Schemas []string `yaml:"schemas"`

	// Env is the database environment. Defaults to development so
	// destroy_all is allowed.
	Env string `yaml:"env,omitempty"`

	// Codec selects the row encoding of the in-memory store.
	Codec string `yaml:"codec,omitempty"`

	// Setup contains operations run before the flow. Each must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the operations under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one model operation.
type Step struct {
	// Model is the registered model name.
	Model string `yaml:"model"`

	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// Record is the record for create and update_or_create, or the patch
	// for update.
	Record map[string]any `yaml:"record,omitempty"`

	// Where is a query document, or a string id.
	Where any `yaml:"where,omitempty"`

	// Expect checks the outcome. When nil the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected operation result.
type ExpectClause struct {
	// Outcome is "ok", "validation", "not_found", "guarded", ...
	Outcome string `yaml:"outcome"`

	// Count is the expected number of rows (find), or the returned count.
	Count *int `yaml:"count,omitempty"`

	// Record is a subset match against the returned record, or the first
	// row of a find.
	Record map[string]any `yaml:"record,omitempty"`

	// Errors maps fields to the constraint kinds expected to fail on them.
	Errors map[string][]string `yaml:"errors,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an operation appears in the trace
	// - "trace_order": operations appear in order
	// - "trace_count": an operation appears exactly N times
	// - "final_state": rows matching a query after the flow
	Type string `yaml:"type"`

	// Model and Op name the operation (trace_contains, trace_count).
	// final_state uses Model only.
	Model string `yaml:"model,omitempty"`
	Op    string `yaml:"op,omitempty"`

	// Outcome optionally narrows trace_contains.
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected "model.op" order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Where is the final_state query. Defaults to every live row.
	Where any `yaml:"where,omitempty"`

	// Expect is a subset match against the first matching row.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected occurrences (trace_count) or rows
	// (final_state).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Operation names accepted in steps.
const (
	OpCreate         = "create"
	OpFind           = "find"
	OpFindOne        = "find_one"
	OpUpdate         = "update"
	OpUpdateOrCreate = "update_or_create"
	OpDestroy        = "destroy"
	OpDestroyAll     = "destroy_all"
	OpCount          = "count"
)

var knownOps = map[string]bool{
	OpCreate:         true,
	OpFind:           true,
	OpFindOne:        true,
	OpUpdate:         true,
	OpUpdateOrCreate: true,
	OpDestroy:        true,
	OpDestroyAll:     true,
	OpCount:          true,
}

// LoadScenario reads a scenario YAML file. Schema paths are resolved
// relative to the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads a scenario YAML file, resolving relative
// schema paths against basePath. Unknown keys are rejected.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schemas {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Schemas[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schemas) == 0 {
		return fmt.Errorf("schemas list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Env != "" && s.Env != model.EnvDevelopment && s.Env != model.EnvProduction {
		return fmt.Errorf("env must be %q or %q, got %q", model.EnvDevelopment, model.EnvProduction, s.Env)
	}
	if s.Codec != "" {
		if _, err := store.CodecByName(s.Codec); err != nil {
			return err
		}
	}

	for _, p := range s.Schemas {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil && step.Expect.Outcome != "ok" {
			return fmt.Errorf("setup[%d]: setup steps must succeed", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(at string, step Step) error {
	if step.Model == "" {
		return fmt.Errorf("%s: model is required", at)
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("%s: unknown op %q", at, step.Op)
	}
	switch step.Op {
	case OpCreate, OpUpdateOrCreate, OpUpdate:
		if step.Record == nil {
			return fmt.Errorf("%s: record is required for %s (use an empty map if no fields)", at, step.Op)
		}
	}
	switch step.Op {
	case OpUpdate, OpUpdateOrCreate, OpDestroy, OpFindOne:
		if step.Where == nil {
			return fmt.Errorf("%s: where is required for %s", at, step.Op)
		}
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("%s.expect: outcome is required", at)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Model == "" || a.Op == "" {
			return fmt.Errorf("assertions[%d]: model and op are required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Model == "" || a.Op == "" {
			return fmt.Errorf("assertions[%d]: model and op are required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Model == "" {
			return fmt.Errorf("assertions[%d]: model is required for final_state", index)
		}
		if len(a.Expect) == 0 && a.Count == nil {
			return fmt.Errorf("assertions[%d]: expect or count is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
