package compiler

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/docket/internal/ir"
	"github.com/roach88/docket/internal/model"
	"github.com/roach88/docket/internal/types"
	"github.com/roach88/docket/internal/validate"
)

// Validation error codes (E100-E199).
const (
	ErrInvalidModelName = "E101" // model name empty or contains "-"
	ErrDuplicateModel   = "E102" // same model name compiled twice
	ErrDefaultViolates  = "E103" // declared default fails its own field constraints
	ErrUniqueList       = "E104" // unique constraint on a list field
	ErrRequiredDefault  = "E105" // required field whose explicit default is empty
)

// ValidationError represents a model declaration problem found after
// compilation.
type ValidationError struct {
	Model   string `json:"model"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s.%s: %s", e.Code, e.Line, e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Model, e.Field, e.Message)
}

// Validate checks compiled models for declarations that compile but
// cannot work as written. Returns all errors found (does not fail-fast).
func Validate(specs []ModelSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for _, spec := range specs {
		line := 0
		if spec.Pos.IsValid() {
			line = spec.Pos.Line()
		}

		if !model.ValidName(spec.Name) {
			errs = append(errs, ValidationError{
				Model:   spec.Name,
				Field:   "name",
				Message: fmt.Sprintf("invalid model name %q: must be non-empty and contain no '-'", spec.Name),
				Code:    ErrInvalidModelName,
				Line:    line,
			})
		}
		if seen[spec.Name] {
			errs = append(errs, ValidationError{
				Model:   spec.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate model name: %q", spec.Name),
				Code:    ErrDuplicateModel,
				Line:    line,
			})
		}
		seen[spec.Name] = true

		if spec.Schema != nil {
			errs = append(errs, validateFields(spec, line)...)
		}
	}
	return errs
}

func validateFields(spec ModelSpec, line int) []ValidationError {
	var errs []ValidationError
	s := spec.Schema
	v := validate.New(s, nil)

	for _, f := range s.Fields() {
		if s.IsBookkeeping(f.Name) {
			continue
		}

		if f.Unique && f.Type == types.List {
			errs = append(errs, ValidationError{
				Model:   spec.Name,
				Field:   f.Name,
				Message: "unique is not supported on list fields",
				Code:    ErrUniqueList,
				Line:    line,
			})
		}

		if f.Default == nil {
			continue
		}
		if f.Required && isEmpty(f.Default) {
			errs = append(errs, ValidationError{
				Model:   spec.Name,
				Field:   f.Name,
				Message: "required field has an empty default",
				Code:    ErrRequiredDefault,
				Line:    line,
			})
			continue
		}

		found, _ := v.Run(context.Background(), ir.Object{f.Name: f.Default}, "")
		shown, _ := ir.MarshalCanonical(f.Default)
		for _, fe := range found[f.Name] {
			errs = append(errs, ValidationError{
				Model:   spec.Name,
				Field:   f.Name,
				Message: fmt.Sprintf("default %s: %s", shown, strings.TrimSuffix(fe.Message, ".")),
				Code:    ErrDefaultViolates,
				Line:    line,
			})
		}
	}
	return errs
}

func isEmpty(v ir.Value) bool {
	switch x := v.(type) {
	case ir.Null:
		return true
	case ir.Text:
		return x == ""
	case ir.List:
		return len(x) == 0
	default:
		return false
	}
}
