package harness

import (
	"sort"

	"github.com/roach88/docket/internal/ir"
)

// TraceEvent records one model operation executed by a scenario.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Model   string `json:"model"`
	Op      string `json:"op"`
	Outcome string `json:"outcome"`

	// Args holds the record and where arguments, when the step had them.
	Args ir.Object `json:"args,omitempty"`

	// Result is the returned record, rows or count. Nil when the
	// operation failed.
	Result ir.Value `json:"result,omitempty"`

	// Errors lists the failed constraint kinds per field for
	// validation outcomes.
	Errors map[string][]string `json:"errors,omitempty"`

	// Message is the error text for any other failure.
	Message string `json:"message,omitempty"`
}

// Label returns "model.op", the name assertions refer to.
func (e TraceEvent) Label() string {
	return e.Model + "." + e.Op
}

// first returns the single record a step produced: the record itself, or
// the first row of a find.
func (e TraceEvent) first() (ir.Object, bool) {
	switch r := e.Result.(type) {
	case ir.Object:
		return r, true
	case ir.List:
		if len(r) == 0 {
			return nil, false
		}
		obj, ok := r[0].(ir.Object)
		return obj, ok
	}
	return nil, false
}

// count returns the number of results: rows for a find, the value for
// count and destroy_all, one for a record.
func (e TraceEvent) count() (int, bool) {
	switch r := e.Result.(type) {
	case ir.List:
		return len(r), true
	case ir.Number:
		return int(r), true
	case ir.Object:
		return 1, true
	}
	return 0, false
}

// canonical converts the event into an ir.Object for canonical JSON.
func (e TraceEvent) canonical() ir.Object {
	obj := ir.Object{
		"seq":     ir.Number(e.Seq),
		"model":   ir.Text(e.Model),
		"op":      ir.Text(e.Op),
		"outcome": ir.Text(e.Outcome),
	}
	if len(e.Args) > 0 {
		obj["args"] = e.Args
	}
	if e.Result != nil {
		obj["result"] = e.Result
	}
	if len(e.Errors) > 0 {
		errs := make(ir.Object, len(e.Errors))
		for field, kinds := range e.Errors {
			list := make(ir.List, len(kinds))
			for i, k := range kinds {
				list[i] = ir.Text(k)
			}
			errs[field] = list
		}
		obj["errors"] = errs
	}
	if e.Message != "" {
		obj["message"] = ir.Text(e.Message)
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains setup and flow operations in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// State holds every live row per model after the flow.
	State map[string][]ir.Object `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string][]ir.Object),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// Models returns the model names present in State, sorted.
func (r *Result) Models() []string {
	names := make([]string, 0, len(r.State))
	for name := range r.State {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
