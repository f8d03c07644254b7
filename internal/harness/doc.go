// Package harness runs conformance scenarios against docket models.
//
// A scenario compiles CUE schemas, registers their models on a private
// in-memory store, executes a flow of model operations and checks the
// resulting trace and final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schemas:
//	  - schemas/person.cue
//	env: development
//	setup:
//	  - model: person
//	    op: create
//	    record: { name: Ada, age: 36 }
//	flow:
//	  - model: person
//	    op: update
//	    where: { name: Ada }
//	    record: { age: 37 }
//	    expect:
//	      outcome: ok
//	      record: { age: 37 }
//	assertions:
//	  - type: trace_contains
//	    model: person
//	    op: update
//	  - type: final_state
//	    model: person
//	    where: { name: Ada }
//	    expect: { age: 37 }
//
// Steps may use the ops create, find, find_one, update,
// update_or_create, destroy, destroy_all and count. Outcomes are the
// strings reported by model.Outcome: ok, validation, not_found, guarded,
// missing_id, and so on.
//
// # Assertion Types
//
//   - trace_contains: an operation appears in the trace, optionally with an outcome
//   - trace_order: operations first appear in the given order
//   - trace_count: an operation appears exactly N times
//   - final_state: rows matching a query, by count and first-row fields
//
// # Deterministic Testing
//
// Every run uses a fake clock starting at testutil.Epoch and advancing one
// second per timestamp, and ids "rec-0001", "rec-0002", ... so traces are
// identical across runs and can be compared with golden files.
package harness
